package loader

import (
	"os"
	"path/filepath"

	"historyloader/internal/errs"
)

// Format names a source export shape this loader dispatch recognises.
type Format string

const (
	FormatTelegramFullExport Format = "telegram_full_export"
	FormatTelegramSingleChat Format = "telegram_single_chat"
	FormatMRAAccount         Format = "mra_account"
)

// Detect inspects root's shape and reports which loader pipeline applies.
// Detection is file-signature and directory-shape based, per the core's
// own "format detection is out of scope beyond Telegram/MRA" contract:
// anything else (Badoo's ChatComDatabase sqlite, WhatsApp text exports,
// Signal, Android SMS) is recognised as out of scope rather than
// misrouted into one of these two pipelines.
func Detect(root string) (Format, error) {
	info, err := os.Stat(root)
	if err != nil {
		return "", errs.Wrap(errs.Io, err, "stat")
	}

	if !info.IsDir() {
		return detectFile(root)
	}

	if _, err := os.Stat(filepath.Join(root, "result.json")); err == nil {
		return FormatTelegramFullExport, nil
	}

	if looksLikeMRAAccount(root) {
		return FormatMRAAccount, nil
	}

	return "", errs.New(errs.UnknownVariant, "loader: %s: unrecognised directory shape", root)
}

func detectFile(path string) (Format, error) {
	if filepath.Ext(path) == ".json" {
		return FormatTelegramSingleChat, nil
	}
	return "", errs.New(errs.UnknownVariant, "loader: %s: unrecognised file format", path)
}

// looksLikeMRAAccount reports whether dir contains at least one modern
// ".db" conversation file, the signature the MRA account-directory shape
// is built around (an optional legacy mra.dbs sits alongside it but is
// not required on its own, since some accounts predate the monolithic
// store entirely).
func looksLikeMRAAccount(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) == ".db" {
			return true
		}
	}
	return false
}

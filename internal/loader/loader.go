package loader

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"historyloader/internal/domain/entity"
	"historyloader/internal/domain/telegram"
	"historyloader/internal/errs"
)

// Load detects root's format and runs the matching pipeline, converging
// on entity.LoadResult regardless of source. chooser is only consulted
// for a single-chat Telegram export, which is the one format that needs
// external disambiguation (§6.4); it may be nil for every other shape.
func Load(root string, chooser MyselfChooser) (entity.LoadResult, error) {
	format, err := Detect(root)
	if err != nil {
		return entity.LoadResult{}, err
	}

	datasetUUID := uuid.NewString()

	switch format {
	case FormatTelegramFullExport:
		data, err := os.ReadFile(filepath.Join(root, "result.json"))
		if err != nil {
			return entity.LoadResult{}, errs.Wrap(errs.Io, err, "read result.json")
		}
		rootObj, singleChat, err := telegram.DetectAndDecodeRoot(data)
		if err != nil {
			return entity.LoadResult{}, err
		}
		if singleChat {
			return telegram.LoadSingleChat(rootObj, datasetUUID, BlockingMyselfChooser(chooser))
		}
		return telegram.LoadFullExport(rootObj, datasetUUID)

	case FormatTelegramSingleChat:
		data, err := os.ReadFile(root)
		if err != nil {
			return entity.LoadResult{}, errs.Wrap(errs.Io, err, "read")
		}
		rootObj, _, err := telegram.DetectAndDecodeRoot(data)
		if err != nil {
			return entity.LoadResult{}, err
		}
		return telegram.LoadSingleChat(rootObj, datasetUUID, BlockingMyselfChooser(chooser))

	case FormatMRAAccount:
		return LoadMRAAccount(root, datasetUUID)

	default:
		return entity.LoadResult{}, errs.New(errs.UnknownVariant, "loader: unhandled format %q", format)
	}
}

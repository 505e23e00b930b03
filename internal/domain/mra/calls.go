package mra

import (
	"historyloader/internal/domain/entity"
	"historyloader/internal/errs"
)

var callBeginStrings = map[string]struct{}{
	"Устанавливается соединение...":              {},
	"Звонок от вашего собеседника":                {},
	"Видеозвонок от вашего собеседника":           {},
	"Вы звоните собеседнику. Ожидание ответа...":  {},
	"Начался разговор":                            {},
}

// callEndDiscardReason maps an end string to its discard_reason; the
// empty string marks a normal hangup (discard_reason = None).
var callEndDiscardReason = map[string]string{
	"Звонок завершен":                                   "",
	"Видеозвонок завершен":                               "",
	"Не удалось установить соединение. Попробуйте позже.": "Failed to connect",
	"Вы отменили звонок":                                 "Declined by you",
	"Вы отклонили звонок":                                "Declined by you",
	"Вы отменили видеозвонок":                             "Declined by you",
	"Вы отклонили видеозвонок":                            "Declined by you",
	"Собеседник отменил звонок":                           "Declined by user",
	"Собеседник отменил видеозвонок":                      "Declined by user",
}

func isCallBeginString(s string) bool {
	_, ok := callBeginStrings[s]
	return ok
}

func isCallEndString(s string) bool {
	_, ok := callEndDiscardReason[s]
	return ok
}

// callTracker implements the call lifecycle state machine: a begin
// string opens a call message unless one was already opened within the
// last 5 processed messages; an end string closes the most recent open
// call if it is still within the last 50 processed messages, stamping
// duration and discard reason onto it. End messages never themselves
// produce an output message.
type callTracker struct {
	ongoingIdx  int
	sinceBegin  int
}

func newCallTracker() *callTracker {
	return &callTracker{ongoingIdx: -1}
}

// tick advances the "messages since the open call began" counter. Call
// once per processed input record, after handling that record.
func (t *callTracker) tick() {
	if t.ongoingIdx >= 0 {
		t.sinceBegin++
	}
}

// beginCall opens a call message in messages if none is already open
// within the 5-message grace window, returning whether it did.
func (t *callTracker) beginCall(messages *[]entity.Message, msg entity.Message) bool {
	if t.ongoingIdx >= 0 && t.sinceBegin <= 5 {
		return false
	}
	svc := entity.Service{Kind: entity.ServicePhoneCall{Members: memberPairFromFlags(msg)}}
	msg.Typed = svc
	t.ongoingIdx = len(*messages)
	t.sinceBegin = 0
	*messages = append(*messages, msg)
	return true
}

// endCall closes the open call if it is still within the 50-message
// window, stamping duration_sec and discard_reason on it.
func (t *callTracker) endCall(messages []entity.Message, timestamp int64, endString string) (bool, error) {
	reason, ok := callEndDiscardReason[endString]
	if !ok {
		return false, errs.New(errs.UnknownVariant, "call end: unrecognised string %q", endString)
	}
	if t.ongoingIdx < 0 || t.sinceBegin > 50 {
		return false, nil
	}
	call := messages[t.ongoingIdx]
	svc, ok := call.Typed.(entity.Service)
	if !ok {
		return false, nil
	}
	pc, ok := svc.Kind.(entity.ServicePhoneCall)
	if !ok {
		return false, nil
	}
	pc.DurationSec = timestamp - call.Timestamp
	pc.DiscardReason = reason
	svc.Kind = pc
	messages[t.ongoingIdx].Typed = svc
	t.ongoingIdx = -1
	return true, nil
}

// memberPairFromFlags builds the member list for a direct call: the
// account owner, plus the message's FromID when someone else sent it.
// An outgoing call (FromID is the owner) lists only the owner.
func memberPairFromFlags(msg entity.Message) []int64 {
	if msg.FromID == entity.MyselfID {
		return []int64{entity.MyselfID}
	}
	return []int64{entity.MyselfID, msg.FromID}
}

package game

import (
	"errors"
	"fmt"
)

// Code classifies an error so transports can map it without matching on
// message text.
type Code string

const (
	CodeNotInRoom            Code = "NOT_IN_ROOM"
	CodeNotRoomOwner         Code = "NOT_ROOM_OWNER"
	CodeAlreadyInRoom        Code = "ALREADY_IN_ROOM"
	CodeActiveHandInProgress Code = "ACTIVE_HAND_IN_PROGRESS"
	CodeHandNotFound         Code = "HAND_NOT_FOUND"
	CodeRoomNotFound         Code = "ROOM_NOT_FOUND"
	CodeRoomNotWaiting       Code = "ROOM_NOT_WAITING"
	CodeRoomNotJoinable      Code = "ROOM_NOT_JOINABLE"
	CodeRoomFull             Code = "ROOM_FULL"
	CodeSeatTaken            Code = "SEAT_TAKEN"
	CodeNoSeats              Code = "NO_SEATS"
	CodeNoActiveHand         Code = "NO_ACTIVE_HAND"
	CodeInsufficientPlayers  Code = "INSUFFICIENT_PLAYERS"
	CodeIllegalAction        Code = "ILLEGAL_ACTION"
	CodeNotYourTurn          Code = "NOT_YOUR_TURN"
	CodeInvalidAmount        Code = "INVALID_AMOUNT"
	CodeInsufficientChips    Code = "INSUFFICIENT_CHIPS"
	CodeInvalidBuyIn         Code = "INVALID_BUY_IN"
	CodeInvalidBuyInRange    Code = "INVALID_BUY_IN_RANGE"
	CodeInvalidBlindRatio    Code = "INVALID_BLIND_RATIO"
	CodeInternal             Code = "INTERNAL"
)

// Error is a coded domain error.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return string(e.Code) + ": " + e.Message + ": " + e.cause.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error carrying the same code, so errors.Is can test for a
// code without regard to message text.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// E builds a coded error.
func E(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errf builds a coded error with a formatted message.
func Errf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// CodeOf extracts the Code from err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

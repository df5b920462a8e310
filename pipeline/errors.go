package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies a run failure.
type Kind string

const (
	KindEmptyScript           Kind = "EmptyScript"
	KindInvalidCaptions       Kind = "InvalidCaptions"
	KindNoAssetsAvailable     Kind = "NoAssetsAvailable"
	KindAssetFetchFailed      Kind = "AssetFetchFailed"
	KindSynthesisFailed       Kind = "SynthesisFailed"
	KindAudioDecodeFailed     Kind = "AudioDecodeFailed"
	KindEngineInitFailed      Kind = "EngineInitFailed"
	KindEngineStagingFailed   Kind = "EngineStagingFailed"
	KindEngineExecutionFailed Kind = "EngineExecutionFailed"
	KindReadbackFailed        Kind = "ReadbackFailed"
)

// Sentinels for errors.Is, one per Kind.
var (
	ErrEmptyScript           = errors.New("script is empty")
	ErrInvalidCaptions       = errors.New("caption track is invalid")
	ErrNoAssetsAvailable     = errors.New("no background assets available")
	ErrAssetFetchFailed      = errors.New("background asset could not be fetched")
	ErrSynthesisFailed       = errors.New("voice synthesis failed")
	ErrAudioDecodeFailed     = errors.New("narration audio could not be decoded")
	ErrEngineInitFailed      = errors.New("media engine could not be initialized")
	ErrEngineStagingFailed   = errors.New("media engine staging failed")
	ErrEngineExecutionFailed = errors.New("media engine execution failed")
	ErrReadbackFailed        = errors.New("encoded reel could not be read back")
)

var sentinels = map[Kind]error{
	KindEmptyScript:           ErrEmptyScript,
	KindInvalidCaptions:       ErrInvalidCaptions,
	KindNoAssetsAvailable:     ErrNoAssetsAvailable,
	KindAssetFetchFailed:      ErrAssetFetchFailed,
	KindSynthesisFailed:       ErrSynthesisFailed,
	KindAudioDecodeFailed:     ErrAudioDecodeFailed,
	KindEngineInitFailed:      ErrEngineInitFailed,
	KindEngineStagingFailed:   ErrEngineStagingFailed,
	KindEngineExecutionFailed: ErrEngineExecutionFailed,
	KindReadbackFailed:        ErrReadbackFailed,
}

// Error is the terminal failure of a run: what went wrong, in which stage,
// and the underlying cause.
type Error struct {
	Kind  Kind  `json:"kind"`
	Stage State `json:"stage"`
	Err   error `json:"-"`
}

func newError(kind Kind, stage State, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.Kind)
	if s, ok := sentinels[e.Kind]; ok {
		msg = s.Error()
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, msg, e.Err)
}

// Unwrap exposes both the Kind sentinel and the cause.
func (e *Error) Unwrap() []error {
	if e == nil {
		return nil
	}
	var errs []error
	if s, ok := sentinels[e.Kind]; ok {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the Kind of a pipeline failure, or "" for other errors.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

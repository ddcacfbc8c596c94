package story

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrMissingScript         = errors.New("Cannot start pipeline without a finalized script.")
	ErrCannotRevertFinal     = errors.New("Cannot revert to the final stage.")
	ErrStageInProgress       = errors.New("Cannot revert while a stage is in progress.")
	ErrStageNotCompleted     = errors.New("Can only revert stages that have been completed.")
	ErrNotInCharacterReview  = errors.New("Characters are not awaiting review.")
	ErrNotInStoryboardReview = errors.New("Storyboard is not awaiting review.")
	ErrNotFailed             = errors.New("Pipeline has not failed.")
	ErrNoClips               = errors.New("No completed mini-videos to concatenate.")
)

package s3sync

import (
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/internal/validation"
)

// wrap classifies err for callers of the syncer. Missing files, integrity
// failures, bad input and initialization failures keep their kind; any other
// failure becomes a sync error that still wraps the cause. Context errors
// pass through untouched.
func wrap(op, key, path string, err error) error {
	if err == nil {
		return nil
	}
	if errors.IsCanceled(err) {
		return err
	}
	switch {
	case errors.IsNotFound(err),
		errors.IsIntegrity(err),
		errors.IsInvalidInput(err),
		errors.IsInitialization(err),
		errors.IsDeletionConsistency(err),
		errors.IsProviderAPI(err):
	default:
		err = errors.Kind(errors.ErrSync, err)
	}
	e := errors.NewError(op, err)
	if key != "" {
		e = e.WithKey(key)
	}
	if path != "" {
		e = e.WithPath(path)
	}
	return e
}

// invalid reports a bad argument.
func invalid(op, message string) error {
	return errors.NewError(op, errors.ErrInvalidInput).WithMessage(message)
}

// checkKey rejects an empty or malformed object key.
func checkKey(op, key string) error {
	if err := validation.ObjectKey(key); err != nil {
		return errors.NewError(op, err)
	}
	return nil
}

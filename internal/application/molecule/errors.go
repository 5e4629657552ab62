package molecule

import (
	"context"

	domainMol "github.com/turtacn/molregistry/internal/domain/molecule"
	"github.com/turtacn/molregistry/pkg/errors"
)

// translate maps domain failures onto AppError codes.  Not-found and
// duplicate errors carry no detail so the response body is exactly the
// default message.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var fe *domainMol.FormatError
	var pe *domainMol.ParseError

	switch {
	case errors.As(err, &fe):
		return errors.Wrap(err, errors.CodeMoleculeInvalidFormat,
			errors.DefaultMessageForCode(errors.CodeMoleculeInvalidFormat)).WithDetail(fe.Error())
	case errors.As(err, &pe):
		return errors.Wrap(err, errors.CodeMoleculeInvalidSMILES,
			errors.DefaultMessageForCode(errors.CodeMoleculeInvalidSMILES)).WithDetail(pe.Error())
	case errors.Is(err, domainMol.ErrNotFound):
		return errors.Wrap(err, errors.CodeMoleculeNotFound,
			errors.DefaultMessageForCode(errors.CodeMoleculeNotFound))
	case errors.Is(err, domainMol.ErrDuplicateIdentifier):
		return errors.Wrap(err, errors.CodeMoleculeExists,
			errors.DefaultMessageForCode(errors.CodeMoleculeExists))
	case errors.Is(err, domainMol.ErrEmptyIdentifier):
		return errors.Wrap(err, errors.CodeInvalidParam, domainMol.ErrEmptyIdentifier.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(err, errors.CodeSearchTimeout,
			errors.DefaultMessageForCode(errors.CodeSearchTimeout))
	case errors.Is(err, context.Canceled):
		return errors.Wrap(err, errors.CodeSearchFailed, "request cancelled")
	default:
		return errors.Wrap(err, errors.CodeInternal, errors.DefaultMessageForCode(errors.CodeInternal))
	}
}

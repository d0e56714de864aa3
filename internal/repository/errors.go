package repository

import (
	"errors"

	"github.com/orirot10/GIVEIT-sub000/internal/apperr"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

// translate maps gorm errors onto the domain taxonomy. notFound is returned
// for gorm.ErrRecordNotFound; anything unknown is wrapped with op.
func translate(err error, notFound error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return pkgerrors.Wrap(apperr.ErrDuplicateKey, op)
	}
	return apperr.ErrStore(pkgerrors.Wrap(err, op))
}

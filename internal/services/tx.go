package services

import (
	"gorm.io/gorm"

	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
)

// inTx runs fn in a transaction, joining the caller's when dbc already carries one.
func inTx(db *gorm.DB, dbc dbctx.Context, fn func(inner dbctx.Context) error) error {
	if isDBTransaction(dbc.Tx) {
		return fn(dbc)
	}
	base := db
	if dbc.Tx != nil {
		base = dbc.Tx
	}
	return base.WithContext(dbc.Context()).Transaction(func(tx *gorm.DB) error {
		return fn(dbc.WithTx(tx))
	})
}

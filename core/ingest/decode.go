package ingest

import (
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/slotwise/slotwise/core"
	"github.com/slotwise/slotwise/core/schema"
)

// DecodeRows decodes the table's records into out, a pointer to a slice of structs
// with `mapstructure` tags naming the columns. Missing columns and NULLs leave zero values.
func DecodeRows(t *schema.Table, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return errors.Wrap(err, "creating decoder")
	}
	if err := dec.Decode(t.Records()); err != nil {
		return errors.Wrapf(err, "decoding %s rows", t.Name)
	}
	return nil
}

// RequireColumns fails with a bad request naming the first missing column.
func RequireColumns(t *schema.Table, columns ...string) error {
	for _, col := range columns {
		if t.ColumnIndex(col) < 0 {
			return core.NewBadRequestError("'%s' is missing the '%s' column", t.Name, col)
		}
	}
	return nil
}

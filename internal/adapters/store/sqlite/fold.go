package sqlite

import (
	"database/sql/driver"
	"fmt"
	"strings"

	sqlitedrv "modernc.org/sqlite"
)

// foldFunc lowercases text the way model.EventFilter.Matches does. SQLite's
// built-in lower() only folds ASCII.
const foldFunc = "balendip_fold"

func init() { //nolint:gochecknoinits // functions must be registered before the first connection
	sqlitedrv.MustRegisterDeterministicScalarFunction(foldFunc, 1, fold)
}

func fold(_ *sqlitedrv.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return strings.ToLower(fmt.Sprint(v)), nil
	}
}

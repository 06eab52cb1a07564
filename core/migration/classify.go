package migration

import (
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

// Verdict tells the executor what to do with a failed statement.
type Verdict int

const (
	Abort Verdict = iota
	Continue
)

func (v Verdict) String() string {
	if v == Continue {
		return "continue"
	}
	return "abort"
}

// MySQL server error numbers.
const (
	ErBadTable         uint16 = 1051
	ErBadField         uint16 = 1054
	ErDupFieldName     uint16 = 1060
	ErDupKeyName       uint16 = 1061
	ErCantDropFieldKey uint16 = 1091
	ErNoSuchTable      uint16 = 1146
	ErDropIndexFK      uint16 = 1553
)

type errorCode struct {
	name    string
	meaning string
}

// benignCodes is the closed allow-list of errors meaning the wanted end state
// is already present.
var benignCodes = map[uint16]errorCode{
	ErDupFieldName:     {"ER_DUP_FIELDNAME", "column already exists"},
	ErDupKeyName:       {"ER_DUP_KEYNAME", "key already exists"},
	ErCantDropFieldKey: {"ER_CANT_DROP_FIELD_OR_KEY", "field or key already dropped"},
	ErBadTable:         {"ER_BAD_TABLE_ERROR", "table not found"},
	ErBadField:         {"ER_BAD_FIELD_ERROR", "field not found"},
	ErDropIndexFK:      {"ER_DROP_INDEX_FK", "index still needed by a foreign key"},
}

// BenignCodes lists the tolerated MySQL error numbers.
func BenignCodes() []uint16 {
	return []uint16{ErDupFieldName, ErDupKeyName, ErCantDropFieldKey, ErBadTable, ErBadField, ErDropIndexFK}
}

// mysqlNumber extracts the server error number carried by err.
func mysqlNumber(err error) (uint16, bool) {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number, true
	}
	return 0, false
}

// Classify decides whether a failed statement may be skipped.
// Only MySQL errors whose number is in the allow-list continue.
func Classify(err error) Verdict {
	if err == nil {
		return Continue
	}
	if n, ok := mysqlNumber(err); ok {
		if _, benign := benignCodes[n]; benign {
			return Continue
		}
	}
	return Abort
}

// IsNoSuchTable reports a 1146 (table doesn't exist) server error.
func IsNoSuchTable(err error) bool {
	n, ok := mysqlNumber(err)
	return ok && n == ErNoSuchTable
}

// IsBadField reports a 1054 (unknown column) server error.
func IsBadField(err error) bool {
	n, ok := mysqlNumber(err)
	return ok && n == ErBadField
}

// CodeName renders err's MySQL error number for logs, e.g. "ER_DUP_KEYNAME (1061)".
func CodeName(err error) string {
	n, ok := mysqlNumber(err)
	if !ok {
		return ""
	}
	if c, ok := benignCodes[n]; ok {
		return fmt.Sprintf("%s (%d)", c.name, n)
	}
	return fmt.Sprintf("MySQL %d", n)
}

// benignMeaning describes why a tolerated error is harmless.
func benignMeaning(err error) string {
	if n, ok := mysqlNumber(err); ok {
		if c, ok := benignCodes[n]; ok {
			return c.meaning
		}
	}
	return ""
}

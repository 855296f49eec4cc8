package decoder

import (
	"fmt"
	"strings"

	"github.com/gosnmp/gosnmp"
	"github.com/vpbank/ups_collector/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// VarbindParser
// ─────────────────────────────────────────────────────────────────────────────

// VarbindParser decodes the response of one table-walk round. A round asks for
// the successor of every column cursor, so the j-th returned varbind belongs
// to the j-th column.
type VarbindParser struct {
	columns []string
}

// NewVarbindParser builds a parser for the given column base OIDs.
func NewVarbindParser(columns []string) (*VarbindParser, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("decoder: no table columns")
	}
	norm := make([]string, len(columns))
	for i, c := range columns {
		norm[i] = NormaliseOID(c)
		if norm[i] == "" {
			return nil, fmt.Errorf("decoder: column %d has an empty OID", i)
		}
	}
	return &VarbindParser{columns: norm}, nil
}

// Columns returns the normalised column OIDs.
func (p *VarbindParser) Columns() []string {
	return append([]string(nil), p.columns...)
}

// Parse returns the decoded row and the cursor for the next round.
//
// The cursor is the list of returned varbind names, so the following round
// continues the walk from where this one stopped. Varbinds that have left
// their column (the walk ran past the end of the table) or that carry an
// exception type are not added to the row, but still advance the cursor.
//
// A response with fewer varbinds than columns is an error.
func (p *VarbindParser) Parse(pdus []gosnmp.SnmpPDU) (models.Snapshot, []string, error) {
	if len(pdus) < len(p.columns) {
		return nil, nil, fmt.Errorf("decoder: short table response: got %d varbinds for %d columns",
			len(pdus), len(p.columns))
	}

	row := make(models.Snapshot, len(p.columns))
	next := make([]string, len(p.columns))
	for j, col := range p.columns {
		pdu := &pdus[j]
		name := NormaliseOID(pdu.Name)
		next[j] = name
		if IsErrorType(pdu.Type) || !InSubtree(name, col) {
			continue
		}
		row[name] = Cast(pdu.Type, pdu.Value)
	}
	return row, next, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// OID helpers
// ─────────────────────────────────────────────────────────────────────────────

// NormaliseOID strips a leading dot and any whitespace from an OID string.
// All OIDs inside the collector are stored and compared in this form.
func NormaliseOID(oid string) string {
	oid = strings.TrimSpace(oid)
	return strings.TrimPrefix(oid, ".")
}

// InSubtree reports whether oid lies strictly below root.
func InSubtree(oid, root string) bool {
	oid = NormaliseOID(oid)
	root = NormaliseOID(root)
	return len(oid) > len(root)+1 && strings.HasPrefix(oid, root) && oid[len(root)] == '.'
}

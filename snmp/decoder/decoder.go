package decoder

import (
	"log/slog"

	"github.com/gosnmp/gosnmp"
	"github.com/vpbank/ups_collector/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// SNMPDecoder
// ─────────────────────────────────────────────────────────────────────────────

// SNMPDecoder turns gosnmp responses into snapshot fragments. It is stateless
// once constructed and safe for concurrent use.
type SNMPDecoder struct {
	logger *slog.Logger
}

// NewSNMPDecoder constructs an SNMPDecoder. A nil logger discards output.
func NewSNMPDecoder(logger *slog.Logger) *SNMPDecoder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &SNMPDecoder{logger: logger}
}

// Decode converts the varbinds of a Get response into a Snapshot keyed by the
// normalised OID. Exception varbinds (noSuchObject, noSuchInstance,
// endOfMibView, Null) carry no value and are left out.
func (d *SNMPDecoder) Decode(pdus []gosnmp.SnmpPDU) models.Snapshot {
	out := make(models.Snapshot, len(pdus))
	var skipped []string
	for i := range pdus {
		pdu := &pdus[i]
		if IsErrorType(pdu.Type) {
			skipped = append(skipped, NormaliseOID(pdu.Name)+"="+PDUTypeString(pdu.Type))
			continue
		}
		out[NormaliseOID(pdu.Name)] = Cast(pdu.Type, pdu.Value)
	}
	if len(skipped) > 0 {
		d.logger.Debug("decode: skipped exception varbinds",
			"pdu_count", len(pdus),
			"skipped", len(skipped),
			"types", skipped,
		)
	}
	return out
}

// DecodeRow maps one bulk round onto its table row. See VarbindParser.Parse.
func (d *SNMPDecoder) DecodeRow(p *VarbindParser, pdus []gosnmp.SnmpPDU) (models.Snapshot, []string, error) {
	row, next, err := p.Parse(pdus)
	if err != nil {
		return nil, nil, err
	}
	if len(row) < len(pdus) {
		d.logger.Debug("decode: row has columns outside the table",
			"returned", len(pdus),
			"kept", len(row),
		)
	}
	return row, next, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// noopWriter — discard all log output when no logger is provided
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }

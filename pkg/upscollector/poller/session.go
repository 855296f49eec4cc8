// Package poller implements the SNMP client side of the collector. It turns
// device configuration into live gosnmp sessions, keeps them in a per-device
// connection pool, and exposes the Get / GetBulk operations the coordinator
// drives every refresh.
package poller

import (
	"fmt"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/vpbank/ups_collector/pkg/upscollector/config"
)

// maxOidsPerRequest bounds a single Get PDU at gosnmp's MaxOids, above which
// gosnmp refuses the request. Larger sets are split.
const maxOidsPerRequest = gosnmp.MaxOids

// ─────────────────────────────────────────────────────────────────────────────
// Session
// ─────────────────────────────────────────────────────────────────────────────

// Session is the subset of *gosnmp.GoSNMP the client needs. Tests substitute
// a scripted fake.
type Session interface {
	Get(oids []string) (*gosnmp.SnmpPacket, error)
	GetNext(oids []string) (*gosnmp.SnmpPacket, error)
	GetBulk(oids []string, nonRepeaters uint8, maxRepetitions uint32) (*gosnmp.SnmpPacket, error)
	Close() error
}

// gosnmpSession adapts *gosnmp.GoSNMP to Session.
type gosnmpSession struct {
	*gosnmp.GoSNMP
}

func (s gosnmpSession) Close() error {
	if s.Conn == nil {
		return nil
	}
	return s.Conn.Close()
}

// ─────────────────────────────────────────────────────────────────────────────
// Session factory — DeviceConfig → Session
// ─────────────────────────────────────────────────────────────────────────────

// NewSession creates and connects a gosnmp session for the given device
// configuration. The caller is responsible for calling Close when the session
// is no longer needed.
//
// For UDP, Connect only opens the local socket; the first request is what
// reaches the agent.
func NewSession(cfg config.DeviceConfig) (Session, error) {
	g, err := BuildParams(cfg)
	if err != nil {
		return nil, err
	}
	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("snmp connect %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return gosnmpSession{g}, nil
}

// BuildParams maps cfg onto an unconnected *gosnmp.GoSNMP.
func BuildParams(cfg config.DeviceConfig) (*gosnmp.GoSNMP, error) {
	g := &gosnmp.GoSNMP{
		Target:  cfg.Host,
		Port:    uint16(cfg.Port),
		Timeout: time.Duration(cfg.Timeout) * time.Millisecond,
		Retries: cfg.Retries,
		MaxOids: maxOidsPerRequest,
	}

	switch cfg.Version {
	case "1":
		g.Version = gosnmp.Version1
		g.Community = cfg.Community
	case "3":
		g.Version = gosnmp.Version3
		g.SecurityModel = gosnmp.UserSecurityModel
		g.MsgFlags = snmpv3MsgFlags(cfg.V3)
		g.SecurityParameters = &gosnmp.UsmSecurityParameters{
			UserName:                 cfg.V3.Username,
			AuthenticationProtocol:   mapAuthProto(cfg.V3.AuthProtocol),
			AuthenticationPassphrase: cfg.V3.AuthKey,
			PrivacyProtocol:          mapPrivProto(cfg.V3.PrivProtocol),
			PrivacyPassphrase:        cfg.V3.PrivKey,
		}
	default:
		return nil, fmt.Errorf("unsupported SNMP version %q", cfg.Version)
	}
	return g, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SNMPv3 helpers
// ─────────────────────────────────────────────────────────────────────────────

func snmpv3MsgFlags(cred config.V3Credentials) gosnmp.SnmpV3MsgFlags {
	switch {
	case cred.HasAuth() && cred.HasPriv():
		return gosnmp.AuthPriv
	case cred.HasAuth():
		return gosnmp.AuthNoPriv
	default:
		return gosnmp.NoAuthNoPriv
	}
}

func mapAuthProto(s string) gosnmp.SnmpV3AuthProtocol {
	switch s {
	case config.AuthSHA:
		return gosnmp.SHA
	case config.AuthSHA256:
		return gosnmp.SHA256
	case config.AuthSHA384:
		return gosnmp.SHA384
	case config.AuthSHA512:
		return gosnmp.SHA512
	default:
		return gosnmp.NoAuth
	}
}

func mapPrivProto(s string) gosnmp.SnmpV3PrivProtocol {
	switch s {
	case config.PrivAES:
		return gosnmp.AES
	case config.PrivAES192:
		return gosnmp.AES192
	case config.PrivAES256:
		return gosnmp.AES256
	default:
		return gosnmp.NoPriv
	}
}

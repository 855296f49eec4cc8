package poller_test

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gosnmp/gosnmp"
	"github.com/vpbank/ups_collector/pkg/upscollector/config"
	"github.com/vpbank/ups_collector/pkg/upscollector/poller"
)

// ─────────────────────────────────────────────────────────────────────────────
// fakeAgent — in-memory SNMP agent behind the Session interface
// ─────────────────────────────────────────────────────────────────────────────

// fakeAgent answers Get / GetNext / GetBulk from a static MIB. OIDs listed in
// unsupported make Get fail with noSuchName at their position, the way a v1
// agent reports an unknown object.
type fakeAgent struct {
	mu          sync.Mutex
	mib         map[string]gosnmp.SnmpPDU
	unsupported map[string]bool

	// failNext makes the next request fail at transport level.
	failNext error
	// statusNext makes the next request return this error status.
	statusNext gosnmp.SNMPError

	requests []request
	dials    int
	closed   int
}

type request struct {
	op   string
	oids []string
}

func newFakeAgent() *fakeAgent {
	return &fakeAgent{
		mib:         make(map[string]gosnmp.SnmpPDU),
		unsupported: make(map[string]bool),
	}
}

func (a *fakeAgent) setInt(oid string, v int) {
	a.mib[oid] = gosnmp.SnmpPDU{Name: "." + oid, Type: gosnmp.Integer, Value: v}
}

func (a *fakeAgent) setString(oid, v string) {
	a.mib[oid] = gosnmp.SnmpPDU{Name: "." + oid, Type: gosnmp.OctetString, Value: []byte(v)}
}

// dialer returns a PoolOptions.Dial that hands out sessions bound to a.
func (a *fakeAgent) dialer() func(config.DeviceConfig) (poller.Session, error) {
	return func(config.DeviceConfig) (poller.Session, error) {
		a.mu.Lock()
		a.dials++
		a.mu.Unlock()
		return &fakeSession{agent: a}, nil
	}
}

func (a *fakeAgent) ops() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.requests))
	for i, r := range a.requests {
		out[i] = r.op
	}
	return out
}

func (a *fakeAgent) begin(op string, oids []string) (*gosnmp.SnmpPacket, error) {
	a.requests = append(a.requests, request{op: op, oids: append([]string(nil), oids...)})
	if a.failNext != nil {
		err := a.failNext
		a.failNext = nil
		return nil, err
	}
	if a.statusNext != gosnmp.NoError {
		st := a.statusNext
		a.statusNext = gosnmp.NoError
		return &gosnmp.SnmpPacket{Error: st}, nil
	}
	return nil, nil
}

func (a *fakeAgent) get(oids []string) (*gosnmp.SnmpPacket, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if pkt, err := a.begin("get", oids); pkt != nil || err != nil {
		return pkt, err
	}
	pkt := &gosnmp.SnmpPacket{}
	for i, oid := range oids {
		key := strings.TrimPrefix(oid, ".")
		if a.unsupported[key] {
			return &gosnmp.SnmpPacket{Error: gosnmp.NoSuchName, ErrorIndex: uint8(i + 1)}, nil
		}
		if pdu, ok := a.mib[key]; ok {
			pkt.Variables = append(pkt.Variables, pdu)
			continue
		}
		pkt.Variables = append(pkt.Variables, gosnmp.SnmpPDU{Name: "." + key, Type: gosnmp.NoSuchObject})
	}
	return pkt, nil
}

func (a *fakeAgent) next(op string, oids []string) (*gosnmp.SnmpPacket, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if pkt, err := a.begin(op, oids); pkt != nil || err != nil {
		return pkt, err
	}
	keys := make([]string, 0, len(a.mib))
	for k := range a.mib {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return compareOID(keys[i], keys[j]) < 0 })

	pkt := &gosnmp.SnmpPacket{}
	for _, oid := range oids {
		key := strings.TrimPrefix(oid, ".")
		idx := sort.Search(len(keys), func(i int) bool { return compareOID(keys[i], key) > 0 })
		if idx == len(keys) {
			pkt.Variables = append(pkt.Variables, gosnmp.SnmpPDU{Name: "." + key, Type: gosnmp.EndOfMibView})
			continue
		}
		pkt.Variables = append(pkt.Variables, a.mib[keys[idx]])
	}
	return pkt, nil
}

// compareOID orders dotted OIDs numerically, component by component.
func compareOID(a, b string) int {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(pa) && i < len(pb); i++ {
		x, _ := strconv.Atoi(pa[i])
		y, _ := strconv.Atoi(pb[i])
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return len(pa) - len(pb)
}

// fakeSession implements poller.Session against a fakeAgent.
type fakeSession struct {
	agent *fakeAgent
}

func (s *fakeSession) Get(oids []string) (*gosnmp.SnmpPacket, error) { return s.agent.get(oids) }

func (s *fakeSession) GetNext(oids []string) (*gosnmp.SnmpPacket, error) {
	return s.agent.next("getnext", oids)
}

func (s *fakeSession) GetBulk(oids []string, nonRepeaters uint8, maxRepetitions uint32) (*gosnmp.SnmpPacket, error) {
	if nonRepeaters != 0 || maxRepetitions != 1 {
		return nil, errors.New("unexpected bulk parameters")
	}
	return s.agent.next("getbulk", oids)
}

func (s *fakeSession) Close() error {
	s.agent.mu.Lock()
	s.agent.closed++
	s.agent.mu.Unlock()
	return nil
}

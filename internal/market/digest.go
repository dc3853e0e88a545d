package market

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/holiman/uint256"
)

// stateDigest serializes the full instance state deterministically. The
// digest feeds the hash chain, so iteration order must be fixed: maps
// are walked in sorted key order.
func (m *Market) stateDigest() []byte {
	var buf bytes.Buffer

	buf.WriteString(m.id)

	writeU256(&buf, m.engine.VirtQuote())
	writeU256(&buf, m.engine.RealQuote())
	writeU256(&buf, m.engine.ReserveToken())
	writeU256(&buf, m.engine.Tokens().TotalSupply())
	writeU256(&buf, m.engine.Tokens().MaxSupply())
	writeU256(&buf, m.engine.Tokens().TotalDebt())

	if m.sale.Ended() {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	writeU256(&buf, m.sale.TotalContributed())

	balances, debts := m.engine.Tokens().Snapshot()
	writeAccountMap(&buf, balances)
	writeAccountMap(&buf, debts)
	writeAccountMap(&buf, m.engine.Quote().Snapshot())
	writeAccountMap(&buf, m.sale.Snapshot())

	return buf.Bytes()
}

func writeU256(buf *bytes.Buffer, v *uint256.Int) {
	b := v.Bytes32()
	buf.Write(b[:])
}

func writeAccountMap(buf *bytes.Buffer, m map[string]*uint256.Int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(keys)))
	buf.Write(lenBuf[:])

	for _, k := range keys {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(k)))
		buf.Write(lenBuf[:])
		buf.WriteString(k)
		writeU256(buf, m[k])
	}
}

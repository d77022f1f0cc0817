package pcsc

import (
	"fmt"
	"strings"

	"github.com/moov-io/bertlv"
)

// describeResponse renders a response APDU for debug logs. Bodies that parse
// as BER-TLV (FCP templates, EF contents with tags) are shown as a tag tree,
// anything else as hex.
func describeResponse(resp []byte) string {
	if len(resp) < 2 {
		return fmt.Sprintf("% X", resp)
	}
	body, sw := resp[:len(resp)-2], resp[len(resp)-2:]
	if len(body) == 0 {
		return fmt.Sprintf("SW=%X", sw)
	}

	tlvs, err := bertlv.Decode(body)
	if err != nil || len(tlvs) == 0 {
		return fmt.Sprintf("SW=%X data=%X", sw, body)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SW=%X tlv=", sw)
	writeTLVs(&sb, tlvs)
	return sb.String()
}

func writeTLVs(sb *strings.Builder, tlvs []bertlv.TLV) {
	for i, t := range tlvs {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.Tag)
		if len(t.TLVs) > 0 {
			sb.WriteByte('{')
			writeTLVs(sb, t.TLVs)
			sb.WriteByte('}')
			continue
		}
		fmt.Fprintf(sb, "=%X", t.Value)
	}
}

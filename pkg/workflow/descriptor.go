package workflow

import "strings"

// Descriptor is the (service, function) identity a node is serialized under.
// Service is lowercased; Function is kept exactly as stored.
type Descriptor struct {
	Service  string
	Function string
}

// DescriptorOf computes the descriptor for n.
func DescriptorOf(n Node) Descriptor {
	return Descriptor{Service: strings.ToLower(n.Service), Function: n.Function}
}

// String renders the descriptor in document form:
// (service:"<service>",function:"<function>").
func (d Descriptor) String() string {
	var sb strings.Builder
	d.writeTo(&sb)
	return sb.String()
}

func (d Descriptor) writeTo(sb *strings.Builder) {
	sb.WriteString(`(service:`)
	writeQuoted(sb, d.Service)
	sb.WriteString(`,function:`)
	writeQuoted(sb, d.Function)
	sb.WriteByte(')')
}

// writeQuoted writes s as a double-quoted literal, escaping '"' and '\'.
func writeQuoted(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('"')
}

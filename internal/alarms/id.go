package alarms

import (
	"fmt"

	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/task"
)

// Kind distinguishes the two alarm dispatchers a protocol's admin contract
// exposes.
type Kind uint8

const (
	KindTime Kind = iota
	KindPrice
)

func (k Kind) String() string {
	if k == KindTime {
		return "time"
	}
	return "price"
}

// ID identifies one alarm dispatcher task: a (protocol, kind) pair. It
// implements task.AppID.
type ID struct {
	ProtocolName string
	Kind         Kind
}

func (id ID) String() string {
	return fmt.Sprintf("%s-alarms(%s)", id.Kind, id.ProtocolName)
}

func (id ID) Protocol() (string, bool) {
	return id.ProtocolName, true
}

func (id ID) Less(other task.AppID) bool {
	o, ok := other.(ID)
	if !ok {
		return id.String() < other.String()
	}
	if id.ProtocolName != o.ProtocolName {
		return id.ProtocolName < o.ProtocolName
	}
	return id.Kind < o.Kind
}

package pricefeed

import (
	"fmt"

	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/task"
)

// ID identifies one price-feeder task: the (protocol, DEX network) pair
// whose oracle contract it feeds and whose pool prices it reads. It
// implements task.AppID.
type ID struct {
	ProtocolName string
	Network      string
}

func (id ID) String() string {
	return fmt.Sprintf("price-feed(%s,%s)", id.ProtocolName, id.Network)
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
	return id.Network < o.Network
}

// Package accounts maps account lifecycle requests to the command line of the
// binary that performs them.
package accounts

import (
	"errors"
	"slices"
)

var (
	ErrInvalidFields   = errors.New("invalid account fields")
	ErrUnsupportedKind = errors.New("unsupported account kind")
)

// Kind is a proxy protocol family whose accounts are managed by a binary.
type Kind string

const (
	KindSSH         Kind = "ssh"
	KindVMess       Kind = "vmess"
	KindVLess       Kind = "vless"
	KindTrojan      Kind = "trojan"
	KindShadowsocks Kind = "shadowsocks"
	KindZiVPN       Kind = "zivpn"
)

// MultiProtocolKinds share the apicreate/apirenew/apidelete binaries and take
// the kind as their first argument.
var MultiProtocolKinds = []Kind{KindSSH, KindVMess, KindVLess, KindTrojan, KindShadowsocks}

func (k Kind) IsMultiProtocol() bool {
	return slices.Contains(MultiProtocolKinds, k)
}

type Operation string

const (
	OpCreate Operation = "create"
	OpRenew  Operation = "renew"
	OpDelete Operation = "delete"
	OpTrial  Operation = "trial"
)

// Command is a fully built invocation target for one account operation.
type Command struct {
	Kind       Kind
	Operation  Operation
	Executable string
	Arguments  []string
}

// Request field sets. Tags list the fields each operation requires.

type MultiProtocolCreate struct {
	User     string `validate:"required"`
	Password string
	Exp      string `validate:"required"`
	Quota    string
	IPLimit  string `validate:"required"`
}

type MultiProtocolRenew struct {
	User    string `validate:"required"`
	Exp     string `validate:"required"`
	Quota   string
	IPLimit string
}

type MultiProtocolDelete struct {
	User string `validate:"required"`
}

type ZiVPNCreate struct {
	Password string `validate:"required"`
	Days     string `validate:"required"`
	IPLimit  string `validate:"required"`
}

type ZiVPNRenew struct {
	Password string `validate:"required"`
	Days     string `validate:"required"`
}

type ZiVPNDelete struct {
	Password string `validate:"required"`
}

// ZiVPNTrial creates a short lived account with a generated password.
// Empty fields take DefaultTrialMinutes and DefaultTrialIPLimit.
type ZiVPNTrial struct {
	DurationMinutes string `validate:"omitempty,numeric"`
	IPLimit         string
}

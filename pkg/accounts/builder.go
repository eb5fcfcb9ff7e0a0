package accounts

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	DefaultZiVPNBinDir  = "/usr/bin"
	DefaultTrialMinutes = "60"
	DefaultTrialIPLimit = "1"

	trialPasswordPrefix   = "trial"
	trialPasswordAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	trialPasswordLength   = 6
	minutesPerDay         = 1440
	maxTrialMinutes       = 366 * minutesPerDay
)

// Executable names. Multi-protocol binaries are resolved through PATH unless
// Config.MultiProtocolBinDir is set.
const (
	multiProtocolCreate = "apicreate"
	multiProtocolRenew  = "apirenew"
	multiProtocolDelete = "apidelete"
	ziVPNCreate         = "apicreate-zivpn"
	ziVPNRenew          = "apirenew-zivpn"
	ziVPNDelete         = "apidelete-zivpn"
)

type Config struct {
	MultiProtocolBinDir string
	ZiVPNBinDir         string
}

// Builder validates request fields and produces the argument vector for the
// matching binary. It holds no mutable state and is safe for concurrent use.
type Builder struct {
	config    Config
	validate  *validator.Validate
	passwords func() (string, error)
}

func NewBuilder(config Config, validate *validator.Validate) *Builder {
	if config.ZiVPNBinDir == "" {
		config.ZiVPNBinDir = DefaultZiVPNBinDir
	}

	return &Builder{
		config:    config,
		validate:  validate,
		passwords: trialPassword,
	}
}

func (b *Builder) CreateMultiProtocol(kind Kind, req MultiProtocolCreate) (Command, error) {
	if err := b.check(kind, req); err != nil {
		return Command{}, err
	}

	args := []string{string(kind), req.User}
	if req.Password != "" {
		args = append(args, req.Password)
	}

	args = append(args, req.Exp)
	if req.Quota != "" {
		args = append(args, req.Quota)
	}

	args = append(args, req.IPLimit)

	return b.multiProtocol(kind, OpCreate, multiProtocolCreate, args), nil
}

func (b *Builder) RenewMultiProtocol(kind Kind, req MultiProtocolRenew) (Command, error) {
	if err := b.check(kind, req); err != nil {
		return Command{}, err
	}

	args := []string{string(kind), req.User, req.Exp}
	if req.Quota != "" {
		args = append(args, req.Quota)
	}

	if req.IPLimit != "" {
		args = append(args, req.IPLimit)
	}

	return b.multiProtocol(kind, OpRenew, multiProtocolRenew, args), nil
}

func (b *Builder) DeleteMultiProtocol(kind Kind, req MultiProtocolDelete) (Command, error) {
	if err := b.check(kind, req); err != nil {
		return Command{}, err
	}

	return b.multiProtocol(kind, OpDelete, multiProtocolDelete, []string{string(kind), req.User}), nil
}

func (b *Builder) CreateZiVPN(req ZiVPNCreate) (Command, error) {
	if err := b.validateFields(req); err != nil {
		return Command{}, err
	}

	return b.ziVPN(OpCreate, ziVPNCreate, req.Password, req.Days, req.IPLimit), nil
}

func (b *Builder) RenewZiVPN(req ZiVPNRenew) (Command, error) {
	if err := b.validateFields(req); err != nil {
		return Command{}, err
	}

	return b.ziVPN(OpRenew, ziVPNRenew, req.Password, req.Days), nil
}

func (b *Builder) DeleteZiVPN(req ZiVPNDelete) (Command, error) {
	if err := b.validateFields(req); err != nil {
		return Command{}, err
	}

	return b.ziVPN(OpDelete, ziVPNDelete, req.Password), nil
}

// TrialZiVPN runs the create binary with a generated trial password and the
// duration rounded up to whole days, never less than one.
func (b *Builder) TrialZiVPN(req ZiVPNTrial) (Command, error) {
	if req.DurationMinutes == "" {
		req.DurationMinutes = DefaultTrialMinutes
	}

	if req.IPLimit == "" {
		req.IPLimit = DefaultTrialIPLimit
	}

	if err := b.validateFields(req); err != nil {
		return Command{}, err
	}

	minutes, err := strconv.ParseFloat(req.DurationMinutes, 64)
	if err != nil {
		return Command{}, fmt.Errorf("%w: duration: %w", ErrInvalidFields, err)
	}

	if minutes > maxTrialMinutes {
		return Command{}, fmt.Errorf("%w: duration exceeds %d minutes", ErrInvalidFields, maxTrialMinutes)
	}

	days := max(1, int(math.Ceil(max(minutes, 0)/minutesPerDay)))

	password, err := b.passwords()
	if err != nil {
		return Command{}, fmt.Errorf("generating trial password: %w", err)
	}

	return b.ziVPN(OpTrial, ziVPNCreate, password, strconv.Itoa(days), req.IPLimit), nil
}

func (b *Builder) check(kind Kind, fields any) error {
	if !kind.IsMultiProtocol() {
		return fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}

	return b.validateFields(fields)
}

func (b *Builder) validateFields(fields any) error {
	if err := b.validate.Struct(fields); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFields, err)
	}

	return nil
}

func (b *Builder) multiProtocol(kind Kind, op Operation, name string, args []string) Command {
	return Command{
		Kind:       kind,
		Operation:  op,
		Executable: executablePath(b.config.MultiProtocolBinDir, name),
		Arguments:  args,
	}
}

func (b *Builder) ziVPN(op Operation, name string, args ...string) Command {
	return Command{
		Kind:       KindZiVPN,
		Operation:  op,
		Executable: executablePath(b.config.ZiVPNBinDir, name),
		Arguments:  args,
	}
}

// Executables lists every binary the builder can target, for health probing.
func (b *Builder) Executables() []string {
	return []string{
		executablePath(b.config.MultiProtocolBinDir, multiProtocolCreate),
		executablePath(b.config.MultiProtocolBinDir, multiProtocolRenew),
		executablePath(b.config.MultiProtocolBinDir, multiProtocolDelete),
		executablePath(b.config.ZiVPNBinDir, ziVPNCreate),
		executablePath(b.config.ZiVPNBinDir, ziVPNRenew),
		executablePath(b.config.ZiVPNBinDir, ziVPNDelete),
	}
}

func executablePath(dir, name string) string {
	if dir == "" {
		return name
	}

	return filepath.Join(dir, name)
}

func trialPassword() (string, error) {
	suffix, err := gonanoid.Generate(trialPasswordAlphabet, trialPasswordLength)
	if err != nil {
		return "", err
	}

	return trialPasswordPrefix + suffix, nil
}

package pcsc

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ebfe/scard"
)

//go:generate go tool mockgen -destination=mock_card.go -package=pcsc . Card,Reader

// ErrNoReader is returned when no matching PC/SC reader is attached.
var ErrNoReader = errors.New("pcsc: no smart card reader found")

// Card is the subset of *scard.Card the server drives.
type Card interface {
	Transmit(cmd []byte) ([]byte, error)
	Status() (*scard.CardStatus, error)
	Reconnect(mode scard.ShareMode, proto scard.Protocol, disp scard.Disposition) error
	Disconnect(disp scard.Disposition) error
}

// Reader powers up and connects the card in one reader slot.
type Reader interface {
	Connect() (Card, error)
}

// ContextReader is a Reader bound to a PC/SC context.
type ContextReader struct {
	ctx  *scard.Context
	name string
}

// OpenReader establishes a PC/SC context and selects the reader called name,
// or the first reader when name is empty.
func OpenReader(name string) (*ContextReader, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("pcsc: establish context: %w", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil || len(readers) == 0 {
		if relErr := ctx.Release(); relErr != nil {
			err = errors.Join(err, relErr)
		}
		return nil, errors.Join(ErrNoReader, err)
	}

	if name == "" {
		name = readers[0]
	} else if !slices.Contains(readers, name) {
		ctx.Release()
		return nil, fmt.Errorf("%w: %q not in %q", ErrNoReader, name, readers)
	}

	return &ContextReader{ctx: ctx, name: name}, nil
}

// Name returns the selected reader name.
func (r *ContextReader) Name() string {
	return r.name
}

// Connect forces T=0 or T=1 to avoid "Parameter Incorrect" errors from
// readers that reject a protocol-less connect.
func (r *ContextReader) Connect() (Card, error) {
	card, err := r.ctx.Connect(r.name, scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		return nil, fmt.Errorf("pcsc: connect %q: %w", r.name, err)
	}
	return card, nil
}

// Close releases the PC/SC context.
func (r *ContextReader) Close() error {
	return r.ctx.Release()
}

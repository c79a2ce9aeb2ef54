package generator

import (
	"github.com/wippyai/asn1-oer/errors"
	"github.com/wippyai/asn1-oer/generator/internal/interp"
	"github.com/wippyai/asn1-oer/generator/internal/ir"
	"github.com/wippyai/asn1-oer/generator/internal/order"
	"github.com/wippyai/asn1-oer/oer"
	"github.com/wippyai/asn1-oer/schema"
)

// Encode encodes v as the user type module.name by interpreting the same
// instructions the generated Go code is rendered from. See Normalize for
// the value model.
func (o *Output) Encode(module, name string, v any) ([]byte, error) {
	u, err := o.lookup(errors.PhaseEncode, module, name)
	if err != nil {
		return nil, err
	}

	buf := getBuf()
	defer func() { putBuf(buf) }()
	for {
		e := oer.NewEncoder(*buf)
		if err := interp.Encode(e, u.encode, v, o.resolve); err != nil {
			return nil, attach(err, module, name)
		}
		n, err := e.Result()
		if err == nil {
			return append([]byte(nil), (*buf)[:n]...), nil
		}
		if err != oer.ErrOutOfMemory || len(*buf) >= encodeMaxSize {
			return nil, runtimeError(errors.PhaseEncode, err, module, name)
		}
		grown := make([]byte, 2*len(*buf))
		buf = &grown
	}
}

// Decode decodes the user type module.name from data and returns the value
// and the number of bytes consumed.
func (o *Output) Decode(module, name string, data []byte) (any, int, error) {
	u, err := o.lookup(errors.PhaseDecode, module, name)
	if err != nil {
		return nil, 0, err
	}

	d := oer.NewDecoder(data)
	v, err := interp.Decode(d, u.decode, o.resolve)
	if err != nil {
		return nil, 0, attach(err, module, name)
	}
	n, err := d.Result()
	if err != nil {
		return nil, 0, runtimeError(errors.PhaseDecode, err, module, name)
	}
	if _, ok := u.typ.(*schema.Sequence); ok && v == nil {
		v = map[string]any{}
	}
	return v, n, nil
}

func (o *Output) lookup(phase errors.Phase, module, name string) (*Unit, error) {
	u, ok := o.units[order.Key{Module: module, Name: name}]
	if !ok {
		return nil, errors.NotFound(phase, "type", module+"."+name)
	}
	return u, nil
}

func (o *Output) resolve(module, name string) (enc, dec []ir.Stmt, ok bool) {
	u, ok := o.units[order.Key{Module: module, Name: name}]
	if !ok {
		return nil, nil, false
	}
	return u.encode, u.decode, true
}

func attach(err error, module, name string) error {
	if e, ok := err.(*errors.Error); ok && e.Module == "" && e.Type == "" {
		e.Module, e.Type = module, name
	}
	return err
}

func runtimeError(phase errors.Phase, cause error, module, name string) error {
	kind := errors.KindOutOfData
	switch cause {
	case oer.ErrOutOfMemory:
		kind = errors.KindOutOfMemory
	case oer.ErrBadLength:
		kind = errors.KindBadLength
	case oer.ErrBadChoice:
		kind = errors.KindBadChoice
	}
	e := errors.Runtime(phase, kind, cause)
	e.Module, e.Type = module, name
	return e
}

package asn1oer

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/go-quicktest/qt"

	"github.com/wippyai/asn1-oer/errors"
	"github.com/wippyai/asn1-oer/generator"
)

const pingSchema = `
Net:
  Ping:
    type: SEQUENCE
    members:
      - name: seq
        type: INTEGER
        range: [0, 65535]
      - name: payload
        type: OCTET STRING
        size: 8
`

func TestGenerate(t *testing.T) {
	src, err := Generate(strings.NewReader(pingSchema), generator.DefaultOptions())
	qt.Assert(t, qt.IsNil(err))
	qt.Check(t, qt.StringContains(string(src), "type NetPing struct"))
	qt.Check(t, qt.StringContains(string(src), "Payload [8]byte"))
	qt.Check(t, qt.StringContains(string(src), "func (v *NetPing) EncodeOER(buf []byte) (int, error)"))
}

func TestGenerateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "net.yaml")
	qt.Assert(t, qt.IsNil(os.WriteFile(path, []byte(pingSchema), 0o644)))

	src, err := GenerateFile(path, generator.Options{Package: "net"})
	qt.Assert(t, qt.IsNil(err))
	qt.Check(t, qt.StringContains(string(src), "package net"))

	_, err = GenerateFile(filepath.Join(t.TempDir(), "missing.yaml"), generator.DefaultOptions())
	qt.Check(t, qt.IsTrue(stderrors.Is(err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindNotFound})))
}

func TestGenerateInvalidSchema(t *testing.T) {
	_, err := Generate(strings.NewReader("Net: ["), generator.DefaultOptions())
	qt.Check(t, qt.IsTrue(stderrors.Is(err, &errors.Error{Phase: errors.PhaseParse, Kind: errors.KindInvalidInput})))
}

func TestGenerateReadError(t *testing.T) {
	_, err := Generate(iotest.ErrReader(stderrors.New("disk gone")), generator.DefaultOptions())
	qt.Check(t, qt.IsTrue(stderrors.Is(err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindInvalidInput})))
	qt.Check(t, qt.ErrorMatches(err, ".*disk gone.*"))
}

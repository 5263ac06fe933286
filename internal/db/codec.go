package db

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"sort"

	"github.com/rust-qt/ritual-sub000/internal/rerror"
)

// The main body is encoded with encoding/gob (the pack's full example repos
// carry no direct msgpack/cbor/protobuf dependency) over a
// deterministic DTO: Go map iteration order is randomized per process, so
// Item.Origin and FFIItem.Checks are flattened to sorted slices before
// encoding, which is what makes "save -> load -> save produces
// byte-identical files" (spec section 8) hold.

type snapshotDTO struct {
	FormatVersion int
	CrateName     string
	CrateVersion  string
	Environments  []Environment
	Items         []itemDTO
	FFIItems      []ffiItemDTO
}

type itemDTO struct {
	Index       int
	Payload     ItemPayload
	Origin      []int
	IncludeFile string
	SourceLine  int
	FFIChildren []int
	HostPath    string
	HostKind    string
	HostSize    int
}

type ffiItemDTO struct {
	Index      int
	Kind       FFIItemKind
	Function   *FFIFunction
	SlotWrapper *SlotWrapper
	SourceItem int
	Checks     []checkEntryDTO
}

type checkEntryDTO struct {
	EnvIndex int
	Success  bool
}

func toDTO(s *Snapshot) snapshotDTO {
	items := make([]itemDTO, len(s.Items))
	for i, it := range s.Items {
		origin := make([]int, 0, len(it.Origin))
		for k := range it.Origin {
			origin = append(origin, k)
		}
		sort.Ints(origin)
		children := append([]int(nil), it.FFIChildren...)
		sort.Ints(children)
		items[i] = itemDTO{
			Index: it.Index, Payload: it.Payload, Origin: origin,
			IncludeFile: it.IncludeFile, SourceLine: it.SourceLine, FFIChildren: children,
			HostPath: it.HostPath, HostKind: it.HostKind, HostSize: it.HostSize,
		}
	}
	ffi := make([]ffiItemDTO, len(s.FFIItems))
	for i, it := range s.FFIItems {
		checks := make([]checkEntryDTO, 0, len(it.Checks))
		for k, v := range it.Checks {
			checks = append(checks, checkEntryDTO{EnvIndex: k.EnvIndex, Success: v})
		}
		sort.Slice(checks, func(a, b int) bool { return checks[a].EnvIndex < checks[b].EnvIndex })
		ffi[i] = ffiItemDTO{
			Index: it.Index, Kind: it.Kind, Function: it.Function, SlotWrapper: it.SlotWrapper,
			SourceItem: it.SourceItem, Checks: checks,
		}
	}
	return snapshotDTO{
		FormatVersion: s.FormatVersion, CrateName: s.CrateName, CrateVersion: s.CrateVersion,
		Environments: s.Environments, Items: items, FFIItems: ffi,
	}
}

func fromDTO(dto snapshotDTO) *Snapshot {
	items := make([]Item, len(dto.Items))
	for i, it := range dto.Items {
		origin := map[int]bool{}
		for _, k := range it.Origin {
			origin[k] = true
		}
		items[i] = Item{
			Index: it.Index, Payload: it.Payload, Origin: origin,
			IncludeFile: it.IncludeFile, SourceLine: it.SourceLine, FFIChildren: it.FFIChildren,
			HostPath: it.HostPath, HostKind: it.HostKind, HostSize: it.HostSize,
		}
	}
	ffi := make([]FFIItem, len(dto.FFIItems))
	for i, it := range dto.FFIItems {
		checks := map[checkKey]bool{}
		for _, c := range it.Checks {
			checks[checkKey{EnvIndex: c.EnvIndex}] = c.Success
		}
		ffi[i] = FFIItem{
			Index: it.Index, Kind: it.Kind, Function: it.Function, SlotWrapper: it.SlotWrapper,
			SourceItem: it.SourceItem, Checks: checks,
		}
	}
	return &Snapshot{
		FormatVersion: dto.FormatVersion, CrateName: dto.CrateName, CrateVersion: dto.CrateVersion,
		Environments: dto.Environments, Items: items, FFIItems: ffi,
	}
}

// EncodeSnapshot renders a Snapshot as a length-prefixed gob-encoded binary
// blob: an 8-byte big-endian length header followed by exactly that many
// bytes of gob data (spec section 4.B "Length-prefixed binary").
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(toDTO(s)); err != nil {
		return nil, rerror.Wrap(rerror.KindDatabase, "EncodeFailed", "encoding database snapshot", err)
	}
	var out bytes.Buffer
	if err := binary.Write(&out, binary.BigEndian, uint64(body.Len())); err != nil {
		return nil, rerror.Wrap(rerror.KindDatabase, "EncodeFailed", "writing length prefix", err)
	}
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

// DecodeSnapshot is the inverse of EncodeSnapshot. A format version other
// than CurrentFormatVersion fails with rerror.DatabaseVersionMismatch.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	if len(data) < 8 {
		return nil, rerror.New(rerror.KindDatabase, "CorruptedEntry", "database file shorter than length header")
	}
	length := binary.BigEndian.Uint64(data[:8])
	body := data[8:]
	if uint64(len(body)) != length {
		return nil, rerror.New(rerror.KindDatabase, "CorruptedEntry",
			fmt.Sprintf("length prefix says %d bytes, file has %d", length, len(body)))
	}
	var dto snapshotDTO
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&dto); err != nil {
		return nil, rerror.Wrap(rerror.KindDatabase, "CorruptedEntry", "decoding database snapshot", err)
	}
	if dto.FormatVersion != CurrentFormatVersion {
		return nil, rerror.DatabaseVersionMismatch(
			fmt.Sprintf("file has version %d, this binary expects %d", dto.FormatVersion, CurrentFormatVersion))
	}
	return fromDTO(dto), nil
}

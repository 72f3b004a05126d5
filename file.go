// Package idb is the integration facade for a parsed IDA Pro database:
// it opens the outer container, decodes the ID0 B-tree into a
// key-schema store, and composes the per-package decoders (ID1/ID2,
// NAM, TIL) into address-centric and type-centric queries. Open
// validates the outer framing, builds the backing store, and hands back
// a single handle the rest of the package's methods operate against.
package idb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/goidb/idb/internal/arch"
	"github.com/goidb/idb/internal/bflags"
	"github.com/goidb/idb/internal/btree"
	"github.com/goidb/idb/internal/container"
	"github.com/goidb/idb/internal/keyschema"
	"github.com/goidb/idb/internal/nam"
	"github.com/goidb/idb/internal/records"
	"github.com/goidb/idb/internal/til"
	"github.com/goidb/idb/internal/utils"
	"github.com/goidb/idb/internal/varint"
)

// OpenOptions configures Open's strict-vs-lenient switch.
// The native address width is never an option here: it is always
// sniffed from the outer container magic, never guessed or configured.
type OpenOptions struct {
	// Strict turns off lenient decoding. Defaults to lenient. In lenient
	// mode a varint continuation byte or a fixed-length field cut off by
	// the end of its input reads as zero, and a few checks are relaxed (a
	// dt value whose first byte is zero, the NAM trailing-padding check,
	// reserved operand type values). Lenient mode does not skip truncated
	// TIL bucket records, and overlapping ID1 segments are an error in
	// both modes.
	Strict bool
	// Logger receives optional diagnostics: Open logs one line when the
	// container is opened, and AddressInfo logs a warning when an
	// address's typeinfo fails to decode. A nil Logger disables logging
	// entirely.
	Logger *slog.Logger
}

// DB is an opened IDA database, parameterised over its native address
// width. Every address-keyed query accepts and returns K, so 32-bit
// databases never pay a 64-bit arithmetic tax and 32-bit address
// wraparound stays correct.
type DB[K arch.Kind] struct {
	store      *keyschema.Store
	id1        *bflags.Section[K]
	id2        *bflags.Section2[K]
	namSec     *nam.Section[K]
	tilSec     *til.Section
	solver     *til.Solver
	info       records.IDBParam
	netdelta   records.Netdelta[K]
	rootPrefix []byte
	lenient    bool
	log        *slog.Logger
}

// Open decodes filename's outer container and ID0 store, then whichever
// of ID1/ID2, NAM, and TIL are present. Go generics cannot be dispatched
// on a runtime-sniffed type, so exactly one of db32/db64 comes back
// non-nil: db64 when the container's magic says 64-bit, db32 otherwise.
func Open(filename string, opts OpenOptions) (db32 *DB[uint32], db64 *DB[uint64], err error) {
	//nolint:gosec // G304: caller-provided filename is the whole point of this entry point
	f, err := os.Open(filename)
	if err != nil {
		return nil, nil, utils.WrapError("idb: open failed", err)
	}
	defer func() { _ = f.Close() }()

	c, err := container.Open(f)
	if err != nil {
		return nil, nil, utils.WrapError("idb: container parse failed", err)
	}
	if opts.Logger != nil {
		opts.Logger.Info("idb: container opened", "shape", c.Shape(), "is64", c.Is64())
	}

	if c.Is64() {
		db64, err = openWidth[uint64](c, opts)
		return nil, db64, err
	}
	db32, err = openWidth[uint32](c, opts)
	return db32, nil, err
}

func openWidth[K arch.Kind](c *container.Container, opts OpenOptions) (*DB[K], error) {
	lenient := !opts.Strict

	btreeSection, err := readID0(c, lenient)
	if err != nil {
		return nil, err
	}
	store := keyschema.New(btreeSection, c.Is64())

	rootPrefix, ok := records.RootNodePrefix(store)
	if !ok {
		return nil, errors.New("idb: database has no Root Node netnode")
	}
	info, err := records.IDAInfo[K](store, rootPrefix)
	if err != nil {
		return nil, utils.WrapError("idb: idainfo decode failed", err)
	}
	imageBase, err := records.ImageBase[K](store, rootPrefix)
	if err != nil {
		return nil, utils.WrapError("idb: image base decode failed", err)
	}

	db := &DB[K]{
		store:      store,
		info:       info,
		netdelta:   records.NetdeltaFromImageBase(imageBase),
		rootPrefix: rootPrefix,
		lenient:    lenient,
		log:        opts.Logger,
	}

	if err := db.loadByteFlags(c); err != nil {
		return nil, err
	}
	if err := db.loadNAM(c); err != nil {
		return nil, err
	}
	if err := db.loadTIL(c); err != nil {
		return nil, err
	}
	return db, nil
}

func readID0(c *container.Container, lenient bool) (*btree.Section, error) {
	r, err := c.OpenSection(container.SectionID0)
	if err != nil {
		return nil, utils.WrapError("idb: ID0 section", err)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, utils.WrapError("idb: ID0 read", err)
	}
	section, err := btree.Read(bytes.NewReader(raw), lenient)
	if err != nil {
		return nil, utils.WrapError("idb: ID0 B-tree decode failed", err)
	}
	return section, nil
}

// loadByteFlags decodes the ID1 container section, which on newer
// databases actually carries the ID2 wire format in place: both
// formats occupy the same section, distinguished only by a leading
// magic, so the raw bytes are sniffed once and handed to whichever
// reader matches instead of guessing from the database version.
func (db *DB[K]) loadByteFlags(c *container.Container) error {
	if _, ok := c.Locate(container.SectionID1); !ok {
		return nil
	}
	r, err := c.OpenSection(container.SectionID1)
	if err != nil {
		return utils.WrapError("idb: ID1/ID2 section", err)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return utils.WrapError("idb: ID1/ID2 read", err)
	}

	if bflags.HasID2Magic(raw) {
		id2, err := bflags.ReadID2[K](bytes.NewReader(raw), db.lenient)
		if err != nil {
			return utils.WrapError("idb: ID2 decode failed", err)
		}
		db.id2 = id2
		return nil
	}

	id1, err := bflags.Read[K](bytes.NewReader(raw), db.lenient)
	if err != nil {
		return utils.WrapError("idb: ID1 decode failed", err)
	}
	db.id1 = id1
	return nil
}

func (db *DB[K]) loadNAM(c *container.Container) error {
	if _, ok := c.Locate(container.SectionNAM); !ok {
		return nil
	}
	r, err := c.OpenSection(container.SectionNAM)
	if err != nil {
		return utils.WrapError("idb: NAM section", err)
	}
	namSec, err := nam.Read[K](r, db.lenient)
	if err != nil {
		return utils.WrapError("idb: NAM decode failed", err)
	}
	db.namSec = namSec
	return nil
}

func (db *DB[K]) loadTIL(c *container.Container) error {
	if _, ok := c.Locate(container.SectionTIL); !ok {
		return nil
	}
	r, err := c.OpenSection(container.SectionTIL)
	if err != nil {
		return utils.WrapError("idb: TIL section", err)
	}
	section, err := til.ReadSection(r, db.lenient)
	if err != nil {
		return utils.WrapError("idb: TIL decode failed", err)
	}
	db.tilSec = section
	db.solver = til.NewSolver(section, section.Header())
	return nil
}

// Info returns the database's decoded root "general parameters" record.
func (db *DB[K]) Info() records.IDBParam { return db.info }

// IsLenient reports whether this handle was opened in lenient mode.
func (db *DB[K]) IsLenient() bool { return db.lenient }

// ByteInfo returns address's decoded byte-flags word, preferring ID1
// when present and falling back to ID2 otherwise.
func (db *DB[K]) ByteInfo(address K) (bflags.ByteInfo, bool) {
	if db.id1 != nil {
		if bi, ok := db.id1.ByteAt(address); ok {
			return bi, true
		}
	}
	if db.id2 != nil {
		return db.id2.ByteAt(address)
	}
	return bflags.ByteInfo{}, false
}

// AddressInfo composes everything the facade knows about a single
// address into one record.
type AddressInfo[K arch.Kind] struct {
	Address           K
	Byte              bflags.ByteInfo
	HasByte           bool
	Comment           string
	HasComment        bool
	CommentRepeatable string
	HasRepeatable     bool
	CommentPre        [][]byte
	CommentPost       [][]byte
	Label             string
	HasLabel          bool
	Type              *til.Type
	OutgoingTypeRefs  []til.Typedef
}

// AddressInfo resolves everything known about a single address:
// byte info, comments (pre/post gated on ID1's extra-comments flag),
// label, stashed typeinfo, and that type's outgoing references.
func (db *DB[K]) AddressInfo(address K) AddressInfo[K] {
	out := AddressInfo[K]{Address: address}
	out.Byte, out.HasByte = db.ByteInfo(address)

	netnode := db.netdelta.EaToNode(address)
	prefix := db.store.AddressKey(uint64(netnode))

	out.Comment, out.HasComment = stringComment(records.CommentAt(db.store, prefix))
	out.CommentRepeatable, out.HasRepeatable = stringComment(records.CommentRepeatableAt(db.store, prefix))
	if out.HasByte && out.Byte.HasExtraComments() {
		out.CommentPre = records.CommentPreAt(db.store, prefix)
		out.CommentPost = records.CommentPostAt(db.store, prefix)
	}

	out.Label, out.HasLabel = records.LabelAt(db.store, prefix, address)

	if raw, ok := records.TypeInfoAt(db.store, prefix); ok && db.tilSec != nil {
		r := varint.NewReader(bytes.NewReader(raw), db.lenient)
		ty, err := til.ReadType(r, db.tilSec.Header(), til.NewFieldNames(nil))
		if err == nil {
			out.Type = &ty
			out.OutgoingTypeRefs = til.OutgoingTypeRefs(&ty)
		} else if db.log != nil {
			db.log.Warn("idb: address typeinfo decode failed", "address", fmt.Sprintf("%x", uint64(address)), "err", err)
		}
	}

	return out
}

func stringComment(raw []byte, ok bool) (string, bool) {
	if !ok {
		return "", false
	}
	return string(raw), true
}

// TypeByOrdinalOrName resolves a TIL types-bucket entry by ordinal
// ("#123") or by plain name, the way a tinfo_t lookup in the IDA SDK
// accepts either form interchangeably.
func (db *DB[K]) TypeByOrdinalOrName(key string) (*til.TypeInfo, bool) {
	if db.solver == nil {
		return nil, false
	}
	if len(key) > 1 && key[0] == '#' {
		var ordinal uint64
		if _, err := fmt.Sscanf(key[1:], "%d", &ordinal); err == nil {
			if ti, ok := db.solver.ByOrdinal(ordinal); ok {
				return ti, true
			}
		}
	}
	return db.solver.ByName(key)
}

// SizeOf returns a resolved type's byte size, delegating to the
// database's own TIL section's compiler/ABI settings.
func (db *DB[K]) SizeOf(ty *til.Type) (uint64, bool) {
	if db.solver == nil {
		return 0, false
	}
	return db.solver.SizeOf(ty)
}

// Segments returns every "$ segs" entry, in on-disk order.
func (db *DB[K]) Segments() ([]records.Segment[K], error) {
	return records.Segments[K](db.store, db.lenient)
}

// Functions returns every decoded "$ funcs" entry.
func (db *DB[K]) Functions() ([]records.IDBFunction[K], error) {
	idx, ok := records.Funcs(db.store)
	if !ok {
		return nil, nil
	}
	return records.Functions[K](db.store, idx, db.lenient)
}

// EntryPoints returns every "$ entry points" record.
func (db *DB[K]) EntryPoints() ([]records.EntryPoint[K], error) {
	return records.EntryPoints[K](db.store)
}

// well-known dirtree netnode names.
const (
	dirtreeLocalTypes = "$ dirtree/tinfos"
	dirtreeStructs    = "$ dirtree/structs"
	dirtreeEnums      = "$ dirtree/enums"
	dirtreeFuncs      = "$ dirtree/funcs"
	dirtreeNames      = "$ dirtree/names"
)

// DirTree walks any named folder tree directly, for dirtrees without a
// dedicated convenience method below (e.g. imports, breakpoints,
// bookmarks).
func (db *DB[K]) DirTree(name string, build func(K) (any, error)) (*records.DirTreeRoot[any], error) {
	return records.DirTree[K, any](db.store, name, db.lenient, build)
}

// DirTreeFunctions walks "$ dirtree/funcs", yielding each leaf's
// function start address.
func (db *DB[K]) DirTreeFunctions() (*records.DirTreeRoot[K], error) {
	return records.DirTree[K, K](db.store, dirtreeFuncs, db.lenient, identity[K])
}

// DirTreeStructures walks "$ dirtree/structs", yielding each leaf's
// struct ordinal/id.
func (db *DB[K]) DirTreeStructures() (*records.DirTreeRoot[K], error) {
	return records.DirTree[K, K](db.store, dirtreeStructs, db.lenient, identity[K])
}

// DirTreeEnums walks "$ dirtree/enums", yielding each leaf's enum
// ordinal/id.
func (db *DB[K]) DirTreeEnums() (*records.DirTreeRoot[K], error) {
	return records.DirTree[K, K](db.store, dirtreeEnums, db.lenient, identity[K])
}

// DirTreeLocalTypes walks "$ dirtree/tinfos", yielding each leaf's local
// type ordinal.
func (db *DB[K]) DirTreeLocalTypes() (*records.DirTreeRoot[K], error) {
	return records.DirTree[K, K](db.store, dirtreeLocalTypes, db.lenient, identity[K])
}

// NamedAddress pairs a "names" dirtree leaf's address with its resolved
// label, looked up on the caller's behalf.
type NamedAddress[K arch.Kind] struct {
	Address  K
	Label    string
	HasLabel bool
}

// DirTreeNames walks "$ dirtree/names", resolving each leaf's label the
// same way AddressInfo does.
func (db *DB[K]) DirTreeNames() (*records.DirTreeRoot[NamedAddress[K]], error) {
	return records.DirTree[K, NamedAddress[K]](db.store, dirtreeNames, db.lenient, func(addr K) (NamedAddress[K], error) {
		netnode := db.netdelta.EaToNode(addr)
		prefix := db.store.AddressKey(uint64(netnode))
		label, ok := records.LabelAt(db.store, prefix, addr)
		return NamedAddress[K]{Address: addr, Label: label, HasLabel: ok}, nil
	})
}

func identity[K arch.Kind](v K) (K, error) { return v, nil }

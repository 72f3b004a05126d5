package records

import (
	"bytes"
	"fmt"

	"github.com/goidb/idb/internal/arch"
	"github.com/goidb/idb/internal/keyschema"
	"github.com/goidb/idb/internal/varint"
)

// RootNodePrefix resolves the "Root Node" netnode's key prefix, the base
// every root-info accessor below is built from.
func RootNodePrefix(store *keyschema.Store) ([]byte, bool) {
	return store.NetnodeByName("Root Node")
}

func rootAlt(store *keyschema.Store, prefix []byte, alt int32) ([]byte, bool) {
	return keyValue(store, supAltKeySigned(prefix, tagArrayAlt, alt, store.Is64()))
}

func rootSup(store *keyschema.Store, prefix []byte, alt uint32) ([]byte, bool) {
	return keyValue(store, supAltKeyUint(prefix, tagArraySup, alt, store.Is64()))
}

// InputFile returns the raw input file name, the "Root Node" netnode's
// own value entry.
func InputFile(store *keyschema.Store, prefix []byte) ([]byte, bool) {
	return keyValue(store, append(append([]byte{}, prefix...), tagValue))
}

// ImageBase returns the database's image base, or 0 if none is recorded
// (id0 netnodes and addresses then coincide).
func ImageBase[K arch.Kind](store *keyschema.Store, prefix []byte) (K, error) {
	raw, ok := rootAlt(store, prefix, ridxAltImage)
	if !ok {
		return 0, nil
	}
	return parseUsizeLE[K](raw)
}

// InputFileSize returns the original input file's byte size, if recorded.
func InputFileSize[K arch.Kind](store *keyschema.Store, prefix []byte) (K, bool, error) {
	raw, ok := rootAlt(store, prefix, ridxAltFsize)
	if !ok {
		return 0, false, nil
	}
	v, err := parseUsizeLE[K](raw)
	return v, true, err
}

// InputFileCRC32 returns the original input file's CRC32, if recorded.
func InputFileCRC32(store *keyschema.Store, prefix []byte) (uint32, bool, error) {
	raw, ok := rootAlt(store, prefix, ridxAltCrc32)
	if !ok {
		return 0, false, nil
	}
	if len(raw) < 4 {
		return 0, false, wrapTruncated("input file crc32")
	}
	return uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24, true, nil
}

// DatabaseNumOpens returns how many times this database has been opened.
func DatabaseNumOpens[K arch.Kind](store *keyschema.Store, prefix []byte) (K, bool, error) {
	raw, ok := rootAlt(store, prefix, ridxAltNop)
	if !ok {
		return 0, false, nil
	}
	v, err := parseUsizeLE[K](raw)
	return v, true, err
}

// DatabaseSecsOpen returns the cumulative number of seconds this database
// has spent open.
func DatabaseSecsOpen[K arch.Kind](store *keyschema.Store, prefix []byte) (K, bool, error) {
	raw, ok := rootAlt(store, prefix, ridxAltElap)
	if !ok {
		return 0, false, nil
	}
	v, err := parseUsizeLE[K](raw)
	return v, true, err
}

// DatabaseCreationTime returns the database's creation Unix timestamp.
func DatabaseCreationTime[K arch.Kind](store *keyschema.Store, prefix []byte) (K, bool, error) {
	raw, ok := rootAlt(store, prefix, ridxAltCtime)
	if !ok {
		return 0, false, nil
	}
	v, err := parseUsizeLE[K](raw)
	return v, true, err
}

// DatabaseInitialVersion returns the IDA version the database was
// originally created with.
func DatabaseInitialVersion[K arch.Kind](store *keyschema.Store, prefix []byte) (K, bool, error) {
	raw, ok := rootAlt(store, prefix, ridxAltVer)
	if !ok {
		return 0, false, nil
	}
	v, err := parseUsizeLE[K](raw)
	return v, true, err
}

// InputFileMD5 returns the original input file's MD5 digest, if recorded.
func InputFileMD5(store *keyschema.Store, prefix []byte) ([]byte, bool) {
	return rootSup(store, prefix, ridxMD5)
}

// InputFileSHA256 returns the original input file's SHA-256 digest, if
// recorded.
func InputFileSHA256(store *keyschema.Store, prefix []byte) ([]byte, bool) {
	return rootSup(store, prefix, ridxSHA256)
}

// CPredefinedMacros returns the C preprocessor macros predefined for this
// database's type library parsing, as a NUL-stripped string.
func CPredefinedMacros(store *keyschema.Store, prefix []byte) (string, bool) {
	raw, ok := rootSup(store, prefix, ridxCMacros)
	if !ok {
		return "", false
	}
	return string(stripNulTerm(raw)), true
}

// CHeaderPath returns the configured C header search path.
func CHeaderPath(store *keyschema.Store, prefix []byte) (string, bool) {
	raw, ok := rootSup(store, prefix, ridxHPath)
	if !ok {
		return "", false
	}
	return string(stripNulTerm(raw)), true
}

// DatabaseCreationVersion returns the IDA release string that last wrote
// this database.
func DatabaseCreationVersion(store *keyschema.Store, prefix []byte) (string, bool) {
	raw, ok := rootSup(store, prefix, ridxIDAVer)
	if !ok {
		return "", false
	}
	return string(stripNulTerm(raw)), true
}

// idaInfoAlt is the fixed sup index (0x0041B994) IDBParam is stored at —
// the address of idainfo's on-disk layout in the IDA kernel this format
// was reverse-engineered from.
const idaInfoAlt = 0x0041B994

// IDAInfo decodes the database's root "general parameters" record.
func IDAInfo[K arch.Kind](store *keyschema.Store, prefix []byte) (IDBParam, error) {
	raw, ok := rootSup(store, prefix, idaInfoAlt)
	if !ok {
		return IDBParam{}, wrapInvariant("no IDBParam recorded under Root Node")
	}
	return readIDBParam[K](raw, store.Is64())
}

func parseUsizeLE[K arch.Kind](raw []byte) (K, error) {
	n := arch.Bytes[K]()
	if len(raw) < n {
		return 0, wrapTruncated("root info scalar")
	}
	return arch.ReadLE[K](raw), nil
}

// IDBParam is the database's general-parameters record: either the
// legacy flat IDBParam1 layout (version <= 699) or the modern
// varint-coded IDBParam2 layout (version >= 700) — only one of V1/V2 is
// populated, matching whichever layout the on-disk version selects.
// Migrated additionally carries every version's fields normalized into
// the single unified shape, with its flag fields reconstructed from the
// raw bytes that carry them pre-7.0 (see migrateRootInfo).
type IDBParam struct {
	V1       *IDBParam1
	V2       *IDBParam2
	Migrated *IDBParam2
}

// Version returns the on-disk idainfo version, regardless of layout.
func (p IDBParam) Version() uint16 {
	if p.V1 != nil {
		return p.V1.Version
	}
	return p.V2.Version
}

// IDBParam1 is the pre-7.0 idainfo layout: every field is a fixed-width
// or arch-word scalar, read sequentially with no version branching
// beyond the ones captured in readIDBParam.
type IDBParam1 struct {
	Version            uint16
	CPU                []byte
	Lflags             uint8
	Demnames           uint8
	Filetype           uint16
	Fcoresize          uint64
	Corestart          uint64
	Ostype             uint16
	Apptype            uint16
	Startsp            uint64
	Af                 uint16
	Startip            uint64
	Startea            uint64
	Minea              uint64
	Maxea              uint64
	Ominea             uint64
	Omaxea             uint64
	Lowoff             uint64
	Highoff            uint64
	Maxref             uint64
	AsciiBreak         uint8
	WideHighByteFirst  uint8
	Indent             uint8
	Comment            uint8
	Xrefnum            uint8
	Entab              uint8
	Specsegs           uint8
	Voids              uint8
	Showauto           uint8
	Auto               uint8
	Border             uint8
	Null               uint8
	Genflags           uint8
	Showpref           uint8
	Prefseg            uint8
	Asmtype            uint8
	Baseaddr           uint64
	Xrefs              uint8
	Binpref            uint16
	Cmtflag            uint8
	Nametype           uint8
	Showbads           uint8
	Prefflag           uint8
	Packbase           uint8
	Asciiflags         uint8
	Listnames          uint8
	Asciiprefs         [16]byte
	Asciisernum        uint64
	Asciizeroes        uint8
	TribyteOrder       uint8
	Mf                 uint8
	Org                uint8
	Assume             uint8
	Checkarg           uint8
	StartSS            uint64
	StartCS            uint64
	Main               uint64
	ShortDn            uint64
	LongDn             uint64
	Datatypes          uint64
	Strtype            uint64
	Af2                uint16
	Namelen            uint16
	Margin             uint16
	Lenxref            uint16
	Lprefix            [16]byte
	Lprefixlen         uint8
	Compiler           uint8
	Model              uint8
	SizeofInt          uint8
	SizeofBool         uint8
	SizeofEnum         uint8
	SizeofAlgn         uint8
	SizeofShort        uint8
	SizeofLong         uint8
	SizeofLlong        uint8
	ChangeCounter      uint32
	SizeofLdbl         uint8
	Abiname            [16]byte
	Abibits            uint32
	Refcmts            uint8
}

// IDBParam2 is the 7.0+ idainfo layout: most fields are now varint-coded
// (dd/dw/unpack_usize) and several packed bytes have been promoted to
// typed bit-flag wrappers. When populated by the migration path
// (IDBParam.Migrated), DataCarousel and CcGuessed additionally hold
// fields the direct pre-7.0-vs-7.0+ parse never carries.
type IDBParam2 struct {
	Version            uint16
	CPU                []byte
	Genflags           Inffl
	Lflags             Lflg
	DatabaseChangeCount uint32
	Filetype           FileType
	Ostype             uint16
	Apptype            uint16
	Asmtype            uint8
	Specsegs           uint8
	Af                 Af
	Baseaddr           uint64
	StartSS            uint64
	StartCS            uint64
	StartIP            uint64
	StartEA            uint64
	StartSP            uint64
	Main               uint64
	MinEA              uint64
	MaxEA              uint64
	OminEA             uint64
	OmaxEA             uint64
	Lowoff             uint64
	Highoff            uint64
	Maxref             uint64
	PrivrangeStartEA   uint64
	PrivrangeEndEA     uint64
	Netdelta           uint64
	Xrefnum            uint8
	TypeXrefnum        uint8
	Refcmtnum          uint8
	Xrefflag           XRef
	MaxAutonameLen     uint16
	Nametype           NameType
	ShortDemnames      uint32
	LongDemnames       uint32
	Demnames           DemName
	Listnames          ListName
	Indent             uint8
	CmtIdent           uint8
	Margin             uint16
	Lenxref            uint16
	Outflags           OutputFlags
	Cmtflg             CommentOptions
	Limiter            DelimiterOptions
	BinPrefixSize      uint16
	Prefflag           LinePrefixOptions
	StrlitFlags        StrLiteralFlags
	StrlitBreak        uint8
	StrlitZeroes       uint8
	Strtype            uint32
	StrlitPref         string
	StrlitSernum       uint64
	Datatypes          uint64
	CcID               Compiler
	CcGuessed          bool
	CcCm               uint8
	CcSizeI            uint8
	CcSizeB            uint8
	CcSizeE            uint8
	CcDefalign         uint8
	CcSizeS            uint8
	CcSizeL            uint8
	CcSizeLL           uint8
	CcSizeLdbl         uint8
	Abibits            AbiOptions
	AppcallOptions     uint32
	DataCarousel       uint64
}

// readIDBParam dispatches on the leading magic/version to the v1 or v2
// layout, then separately reconstructs the unified migrated view from
// the bytes following magic+version (see migrateRootInfo).
func readIDBParam[K arch.Kind](data []byte, is64 bool) (IDBParam, error) {
	if len(data) < 3 {
		return IDBParam{}, wrapTruncated("root info magic")
	}
	var magicOld bool
	consumed := 3
	switch string(data[:3]) {
	case "ida":
		if len(data) < 4 || data[3] != 0 {
			return IDBParam{}, wrapInvariant("malformed legacy IDBParam magic")
		}
		magicOld = true
		consumed = 4
	case "IDA":
		magicOld = false
	default:
		return IDBParam{}, wrapInvariant("invalid IDBParam magic")
	}
	if len(data) < consumed+2 {
		return IDBParam{}, wrapTruncated("root info version")
	}
	version := uint16(data[consumed]) | uint16(data[consumed+1])<<8
	consumed += 2
	rest := data[consumed:]

	r := varint.NewReader(bytes.NewReader(rest), false)
	var cpuLen int
	switch {
	case version <= 699:
		cpuLen = 8
	case magicOld:
		cpuLen = 16
	default:
		b, err := r.ReadU8()
		if err != nil {
			return IDBParam{}, err
		}
		cpuLen = int(b)
	}
	cpuRaw := make([]byte, cpuLen)
	if err := r.ReadExact(cpuRaw); err != nil {
		return IDBParam{}, err
	}
	cpuStr, ok := keyschema.ParseMaybeCString(cpuRaw)
	if !ok {
		return IDBParam{}, wrapInvariant("invalid root info cpu name")
	}
	cpu := append([]byte{}, cpuStr...)

	var param IDBParam
	if version <= 699 {
		v1, err := readIDBParam1(r, version, cpu, is64)
		if err != nil {
			return IDBParam{}, err
		}
		param.V1 = v1
	} else {
		v2, err := readIDBParam2[K](r, magicOld, version, cpu)
		if err != nil {
			return IDBParam{}, err
		}
		param.V2 = v2
	}

	migrated, err := migrateRootInfo[K](rest, version)
	if err != nil {
		return IDBParam{}, err
	}
	param.Migrated = migrated

	return param, nil
}

func readIDBParam1(r *varint.Reader, version uint16, cpu []byte, is64 bool) (*IDBParam1, error) {
	p := &IDBParam1{Version: version, CPU: cpu}
	word := func(dst *uint64) func() error { return readWordInto64(r, dst, is64) }
	readers := []func() error{
		readU8Into(r, &p.Lflags),
		readU8Into(r, &p.Demnames),
		readU16Into(r, &p.Filetype),
		word(&p.Fcoresize),
		word(&p.Corestart),
		readU16Into(r, &p.Ostype),
		readU16Into(r, &p.Apptype),
		word(&p.Startsp),
		readU16Into(r, &p.Af),
		word(&p.Startip),
		word(&p.Startea),
		word(&p.Minea),
		word(&p.Maxea),
		word(&p.Ominea),
		word(&p.Omaxea),
		word(&p.Lowoff),
		word(&p.Highoff),
		word(&p.Maxref),
		readU8Into(r, &p.AsciiBreak),
		readU8Into(r, &p.WideHighByteFirst),
		readU8Into(r, &p.Indent),
		readU8Into(r, &p.Comment),
		readU8Into(r, &p.Xrefnum),
		readU8Into(r, &p.Entab),
		readU8Into(r, &p.Specsegs),
		readU8Into(r, &p.Voids),
		skipU8(r), // unknown
		readU8Into(r, &p.Showauto),
		readU8Into(r, &p.Auto),
		readU8Into(r, &p.Border),
		readU8Into(r, &p.Null),
		readU8Into(r, &p.Genflags),
		readU8Into(r, &p.Showpref),
		readU8Into(r, &p.Prefseg),
		readU8Into(r, &p.Asmtype),
		word(&p.Baseaddr),
		readU8Into(r, &p.Xrefs),
		readU16Into(r, &p.Binpref),
		readU8Into(r, &p.Cmtflag),
		readU8Into(r, &p.Nametype),
		readU8Into(r, &p.Showbads),
		readU8Into(r, &p.Prefflag),
		readU8Into(r, &p.Packbase),
		readU8Into(r, &p.Asciiflags),
		readU8Into(r, &p.Listnames),
		readBytesInto(r, p.Asciiprefs[:]),
		word(&p.Asciisernum),
		readU8Into(r, &p.Asciizeroes),
		skipU16(r), // unknown
		readU8Into(r, &p.TribyteOrder),
		readU8Into(r, &p.Mf),
		readU8Into(r, &p.Org),
		readU8Into(r, &p.Assume),
		readU8Into(r, &p.Checkarg),
		word(&p.StartSS),
		word(&p.StartCS),
		word(&p.Main),
		word(&p.ShortDn),
		word(&p.LongDn),
		word(&p.Datatypes),
		word(&p.Strtype),
		readU16Into(r, &p.Af2),
		readU16Into(r, &p.Namelen),
		readU16Into(r, &p.Margin),
		readU16Into(r, &p.Lenxref),
		readBytesInto(r, p.Lprefix[:]),
		readU8Into(r, &p.Lprefixlen),
		readU8Into(r, &p.Compiler),
		readU8Into(r, &p.Model),
		readU8Into(r, &p.SizeofInt),
		readU8Into(r, &p.SizeofBool),
		readU8Into(r, &p.SizeofEnum),
		readU8Into(r, &p.SizeofAlgn),
		readU8Into(r, &p.SizeofShort),
		readU8Into(r, &p.SizeofLong),
		readU8Into(r, &p.SizeofLlong),
		readU32Into(r, &p.ChangeCounter),
		readU8Into(r, &p.SizeofLdbl),
		skipU32(r), // unknown
		readBytesInto(r, p.Abiname[:]),
		readU32Into(r, &p.Abibits),
		readU8Into(r, &p.Refcmts),
	}
	for _, step := range readers {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func readIDBParam2[K arch.Kind](r *varint.Reader, magicOld bool, version uint16, cpu []byte) (*IDBParam2, error) {
	p := &IDBParam2{Version: version, CPU: cpu}

	genflags, err := r.UnpackDW()
	if err != nil {
		return nil, err
	}
	if p.Genflags, err = newInffl(genflags); err != nil {
		return nil, err
	}
	lflags, err := r.UnpackDD()
	if err != nil {
		return nil, err
	}
	if p.Lflags, err = newLflg(lflags); err != nil {
		return nil, err
	}
	if p.DatabaseChangeCount, err = r.UnpackDD(); err != nil {
		return nil, err
	}
	ft, err := r.UnpackDW()
	if err != nil {
		return nil, err
	}
	if p.Filetype, err = fileTypeFromValue(ft); err != nil {
		return nil, err
	}
	if p.Ostype, err = r.UnpackDW(); err != nil {
		return nil, err
	}
	if p.Apptype, err = r.UnpackDW(); err != nil {
		return nil, err
	}
	if p.Asmtype, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if p.Specsegs, err = r.ReadU8(); err != nil {
		return nil, err
	}
	af1, err := r.UnpackDD()
	if err != nil {
		return nil, err
	}
	af2, err := r.UnpackDD()
	if err != nil {
		return nil, err
	}
	if p.Af, err = newAf(af1, af2); err != nil {
		return nil, err
	}
	for _, dst := range []*uint64{
		&p.Baseaddr, &p.StartSS, &p.StartCS, &p.StartIP, &p.StartEA, &p.StartSP,
		&p.Main, &p.MinEA, &p.MaxEA, &p.OminEA, &p.OmaxEA, &p.Lowoff, &p.Highoff,
		&p.Maxref, &p.PrivrangeStartEA, &p.PrivrangeEndEA, &p.Netdelta,
	} {
		v, err := varint.UnpackUsize[K](r)
		if err != nil {
			return nil, err
		}
		*dst = uint64(v)
	}
	if p.Xrefnum, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if p.TypeXrefnum, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if p.Refcmtnum, err = r.ReadU8(); err != nil {
		return nil, err
	}
	xrefflag, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	if p.Xrefflag, err = newXRef(xrefflag); err != nil {
		return nil, err
	}
	if p.MaxAutonameLen, err = r.UnpackDW(); err != nil {
		return nil, err
	}

	if magicOld {
		var unknown [17]byte
		if err := r.ReadExact(unknown[:]); err != nil {
			return nil, err
		}
	}

	nametype, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	if p.Nametype, err = nameTypeFromValue(nametype); err != nil {
		return nil, err
	}
	if p.ShortDemnames, err = r.UnpackDD(); err != nil {
		return nil, err
	}
	if p.LongDemnames, err = r.UnpackDD(); err != nil {
		return nil, err
	}
	demnames, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	if p.Demnames, err = newDemName(demnames); err != nil {
		return nil, err
	}
	listnames, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	if p.Listnames, err = newListName(listnames); err != nil {
		return nil, err
	}
	if p.Indent, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if p.CmtIdent, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if p.Margin, err = r.UnpackDW(); err != nil {
		return nil, err
	}
	if p.Lenxref, err = r.UnpackDW(); err != nil {
		return nil, err
	}
	outflags, err := r.UnpackDD()
	if err != nil {
		return nil, err
	}
	if p.Outflags, err = newOutputFlags(outflags); err != nil {
		return nil, err
	}
	cmtflg, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	p.Cmtflg = CommentOptions(cmtflg)
	limiter, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	if p.Limiter, err = newDelimiterOptions(limiter); err != nil {
		return nil, err
	}
	if p.BinPrefixSize, err = r.UnpackDW(); err != nil {
		return nil, err
	}
	prefflag, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	if p.Prefflag, err = newLinePrefixOptions(prefflag); err != nil {
		return nil, err
	}
	strlitFlags, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	if p.StrlitFlags, err = newStrLiteralFlags(strlitFlags); err != nil {
		return nil, err
	}
	if p.StrlitBreak, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if p.StrlitZeroes, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if p.Strtype, err = r.UnpackDD(); err != nil {
		return nil, err
	}

	strlitPrefLen, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	effLen := int(strlitPrefLen)
	if magicOld {
		effLen = 16
	}
	strlitPrefRaw := make([]byte, effLen)
	if err := r.ReadExact(strlitPrefRaw); err != nil {
		return nil, err
	}
	p.StrlitPref = string(strlitPrefRaw)

	strlitSernum, err := varint.UnpackUsize[K](r)
	if err != nil {
		return nil, err
	}
	p.StrlitSernum = uint64(strlitSernum)
	datatypes, err := varint.UnpackUsize[K](r)
	if err != nil {
		return nil, err
	}
	p.Datatypes = uint64(datatypes)

	ccID, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	p.CcID = compilerFromValue(ccID)
	if p.CcCm, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if p.CcSizeI, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if p.CcSizeB, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if p.CcSizeE, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if p.CcDefalign, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if p.CcSizeS, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if p.CcSizeL, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if p.CcSizeLL, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if p.CcSizeLdbl, err = r.ReadU8(); err != nil {
		return nil, err
	}
	abibits, err := r.UnpackDD()
	if err != nil {
		return nil, err
	}
	if p.Abibits, err = newAbiOptions(abibits); err != nil {
		return nil, err
	}
	if p.AppcallOptions, err = r.UnpackDD(); err != nil {
		return nil, err
	}
	return p, nil
}

// --- sequential-read helper closures for the flat pre-7.0 layout ---

func readU8Into(r *varint.Reader, dst *uint8) func() error {
	return func() error {
		v, err := r.ReadU8()
		*dst = v
		return err
	}
}

func readU16Into(r *varint.Reader, dst *uint16) func() error {
	return func() error {
		v, err := r.ReadU16()
		*dst = v
		return err
	}
}

func readU32Into(r *varint.Reader, dst *uint32) func() error {
	return func() error {
		v, err := r.ReadU32()
		*dst = v
		return err
	}
}

// readWordInto64 reads one arch-width "word" value (32-bit or 64-bit
// depending on is64) widened into a uint64 destination, matching Rust's
// read_word::<K>().into() pattern.
func readWordInto64(r *varint.Reader, dst *uint64, is64 bool) func() error {
	return func() error {
		if is64 {
			v, err := varint.ReadUsize[uint64](r)
			*dst = v
			return err
		}
		v, err := varint.ReadUsize[uint32](r)
		*dst = uint64(v)
		return err
	}
}

func readBytesInto(r *varint.Reader, dst []byte) func() error {
	return func() error {
		return r.ReadExact(dst)
	}
}

func skipU8(r *varint.Reader) func() error {
	return func() error {
		_, err := r.ReadU8()
		return err
	}
}

func skipU16(r *varint.Reader) func() error {
	return func() error {
		_, err := r.ReadU16()
		return err
	}
}

func skipU32(r *varint.Reader) func() error {
	return func() error {
		_, err := r.ReadU32()
		return err
	}
}

// --- typed idainfo bit-flag wrappers ---

// Inffl is idainfo's general-purpose flag byte.
type Inffl uint8

func newInffl(value uint16) (Inffl, error) {
	if value >= 0x100 {
		return 0, wrapInvariant(fmt.Sprintf("invalid INFFL flag: %X", value))
	}
	return Inffl(value), nil
}

func (f Inffl) IsAutoAnalysisEnabled() bool    { return f&0x01 != 0 }
func (f Inffl) MaybeNotSupported() bool        { return f&0x02 != 0 }
func (f Inffl) IsDatabaseInfoInIDC() bool      { return f&0x04 != 0 }
func (f Inffl) IsUserInfoNotInDatabase() bool  { return f&0x08 != 0 }
func (f Inffl) IsReadOnly() bool               { return f&0x10 != 0 }
func (f Inffl) IsManualOperands() bool         { return f&0x20 != 0 }
func (f Inffl) IsNonMatchedOperands() bool     { return f&0x40 != 0 }
func (f Inffl) IsUsingGraph() bool             { return f&0x80 != 0 }

// Lflg carries the database-wide load flags (bitness, endianness,
// packing).
type Lflg uint16

func newLflg(value uint32) (Lflg, error) {
	if value >= 0x1000 {
		return 0, wrapInvariant(fmt.Sprintf("invalid LFLG flag: %X", value))
	}
	return Lflg(value), nil
}

func (f Lflg) IsDecodeFloat() bool         { return f&0x0001 != 0 }
func (f Lflg) IsProgram32bOrBigger() bool  { return f&0x0002 != 0 }
func (f Lflg) IsProgram64b() bool          { return f&0x0004 != 0 }
func (f Lflg) IsDynLib() bool              { return f&0x0008 != 0 }
func (f Lflg) IsFlatOff32() bool           { return f&0x0010 != 0 }
func (f Lflg) IsBigEndian() bool           { return f&0x0020 != 0 }
func (f Lflg) IsWideByteFirst() bool       { return f&0x0040 != 0 }
func (f Lflg) IsDbgNonFullpath() bool      { return f&0x0080 != 0 }
func (f Lflg) IsSnapshotTaken() bool       { return f&0x0100 != 0 }
func (f Lflg) IsDatabasePack() bool        { return f&0x0200 != 0 }
func (f Lflg) IsDatabaseCompress() bool    { return f&0x0400 != 0 }
func (f Lflg) IsKernelMode() bool          { return f&0x0800 != 0 }

// Af carries the auto-analysis option flags, split across two packed
// words.
type Af struct {
	lo uint32
	hi uint8
}

func newAf(value1, value2 uint32) (Af, error) {
	if value2 >= 0x10 {
		return Af{}, wrapInvariant(fmt.Sprintf("invalid AF2 value: %X", value2))
	}
	return Af{lo: value1, hi: uint8(value2)}, nil
}

func (a Af) IsCode() bool     { return a.lo&0x00000001 != 0 }
func (a Af) IsMarkcode() bool { return a.lo&0x00000002 != 0 }
func (a Af) IsJumptbl() bool  { return a.lo&0x00000004 != 0 }
func (a Af) IsPurdat() bool   { return a.lo&0x00000008 != 0 }
func (a Af) IsUsed() bool     { return a.lo&0x00000010 != 0 }
func (a Af) IsUnk() bool      { return a.lo&0x00000020 != 0 }
func (a Af) IsProcptr() bool  { return a.lo&0x00000040 != 0 }
func (a Af) IsProc() bool     { return a.lo&0x00000080 != 0 }
func (a Af) IsFtail() bool    { return a.lo&0x00000100 != 0 }
func (a Af) IsLvar() bool     { return a.lo&0x00000200 != 0 }
func (a Af) IsStkarg() bool   { return a.lo&0x00000400 != 0 }
func (a Af) IsRegarg() bool   { return a.lo&0x00000800 != 0 }
func (a Af) IsTrace() bool    { return a.lo&0x00001000 != 0 }
func (a Af) IsVersp() bool    { return a.lo&0x00002000 != 0 }
func (a Af) IsAnoret() bool   { return a.lo&0x00004000 != 0 }
func (a Af) IsMemfunc() bool  { return a.lo&0x00008000 != 0 }
func (a Af) IsTrfunc() bool   { return a.lo&0x00010000 != 0 }
func (a Af) IsStrlit() bool   { return a.lo&0x00020000 != 0 }
func (a Af) IsChkuni() bool   { return a.lo&0x00040000 != 0 }
func (a Af) IsFixup() bool    { return a.lo&0x00080000 != 0 }
func (a Af) IsDrefoff() bool  { return a.lo&0x00100000 != 0 }
func (a Af) IsImmoff() bool   { return a.lo&0x00200000 != 0 }
func (a Af) IsDatoff() bool   { return a.lo&0x00400000 != 0 }
func (a Af) IsFlirt() bool    { return a.lo&0x00800000 != 0 }
func (a Af) IsSigcmt() bool   { return a.lo&0x01000000 != 0 }
func (a Af) IsSigmlt() bool   { return a.lo&0x02000000 != 0 }
func (a Af) IsHflirt() bool   { return a.lo&0x04000000 != 0 }
func (a Af) IsJfunc() bool    { return a.lo&0x08000000 != 0 }
func (a Af) IsNullsub() bool  { return a.lo&0x10000000 != 0 }
func (a Af) IsDodata() bool   { return a.lo&0x20000000 != 0 }
func (a Af) IsDocode() bool   { return a.lo&0x40000000 != 0 }
func (a Af) IsFinal() bool    { return a.lo&0x80000000 != 0 }
func (a Af) IsDoeh() bool     { return a.hi&0x1 != 0 }
func (a Af) IsDortti() bool   { return a.hi&0x2 != 0 }
func (a Af) IsMacro() bool    { return a.hi&0x4 != 0 }

// XRef controls how cross-references are displayed.
type XRef uint8

func newXRef(value uint8) (XRef, error) {
	if value >= 0x10 {
		return 0, wrapInvariant(fmt.Sprintf("invalid XRef flag: %X", value))
	}
	return XRef(value), nil
}

func (x XRef) IsSegxrf() bool { return x&0x01 != 0 }
func (x XRef) IsXrfmrk() bool { return x&0x02 != 0 }
func (x XRef) IsXrffnc() bool { return x&0x04 != 0 }
func (x XRef) IsXrfval() bool { return x&0x08 != 0 }

// NameType selects how auto-generated names are formatted.
type NameType uint8

const (
	NameRelOff NameType = iota
	NamePtrOff
	NameNamOff
	NameRelEa
	NamePtrEa
	NameNamEa
	NameEa
	NameEa4
	NameEa8
	NameShort
	NameSerial
)

func nameTypeFromValue(value uint8) (NameType, error) {
	if value > uint8(NameSerial) {
		return 0, wrapInvariant(fmt.Sprintf("invalid NameType value: %d", value))
	}
	return NameType(value), nil
}

// DemName controls how demangled C++ names are displayed.
type DemName uint8

func newDemName(value uint8) (DemName, error) {
	if value >= 0x10 || value == 0x3 {
		return 0, wrapInvariant(fmt.Sprintf("invalid DemName flag: %X", value))
	}
	return DemName(value), nil
}

type DemNamesForm uint8

const (
	DemNamesCmnt DemNamesForm = iota
	DemNamesName
	DemNamesNone
)

func (d DemName) NameForm() DemNamesForm { return DemNamesForm(d & 0x3) }
func (d DemName) IsGcc3() bool           { return d&0x4 != 0 }
func (d DemName) OverrideTypeInfo() bool { return d&0x8 != 0 }

// ListName selects which name classes are included in the Names window.
type ListName uint8

func newListName(value uint8) (ListName, error) {
	if value >= 0x10 {
		return 0, wrapInvariant(fmt.Sprintf("invalid ListName flag: %X", value))
	}
	return ListName(value), nil
}

func (l ListName) IsNormal() bool { return l&0x01 != 0 }
func (l ListName) IsPublic() bool { return l&0x02 != 0 }
func (l ListName) IsAuto() bool   { return l&0x04 != 0 }
func (l ListName) IsWeak() bool   { return l&0x08 != 0 }

// OutputFlags controls disassembly listing generation.
type OutputFlags uint16

func newOutputFlags(value uint32) (OutputFlags, error) {
	if value >= 0x800 {
		return 0, wrapInvariant(fmt.Sprintf("invalid OutputFlags value: %X", value))
	}
	return OutputFlags(value), nil
}

func (o OutputFlags) ShowVoid() bool     { return o&0x002 != 0 }
func (o OutputFlags) ShowAuto() bool     { return o&0x004 != 0 }
func (o OutputFlags) GenNull() bool      { return o&0x010 != 0 }
func (o OutputFlags) ShowPref() bool     { return o&0x020 != 0 }
func (o OutputFlags) IsPrefSeg() bool    { return o&0x040 != 0 }
func (o OutputFlags) GenLzero() bool     { return o&0x080 != 0 }
func (o OutputFlags) GenOrg() bool       { return o&0x100 != 0 }
func (o OutputFlags) GenAssume() bool    { return o&0x200 != 0 }
func (o OutputFlags) GenTryblks() bool   { return o&0x400 != 0 }

// CommentOptions controls what comment classes are shown.
type CommentOptions uint8

func (c CommentOptions) IsRptcmt() bool    { return c&0x01 != 0 }
func (c CommentOptions) IsAllcmt() bool    { return c&0x02 != 0 }
func (c CommentOptions) IsNocmt() bool     { return c&0x04 != 0 }
func (c CommentOptions) IsLinnum() bool    { return c&0x08 != 0 }
func (c CommentOptions) IsTestmode() bool  { return c&0x10 != 0 }
func (c CommentOptions) IsShhidItem() bool { return c&0x20 != 0 }
func (c CommentOptions) IsShhidFunc() bool { return c&0x40 != 0 }
func (c CommentOptions) IsShhidSegm() bool { return c&0x80 != 0 }

// DelimiterOptions controls basic-block border rendering.
type DelimiterOptions uint8

func newDelimiterOptions(value uint8) (DelimiterOptions, error) {
	if value >= 0x08 {
		return 0, wrapInvariant(fmt.Sprintf("invalid DelimiterOptions value: %X", value))
	}
	return DelimiterOptions(value), nil
}

func (d DelimiterOptions) IsThin() bool  { return d&0x01 != 0 }
func (d DelimiterOptions) IsThick() bool { return d&0x02 != 0 }
func (d DelimiterOptions) IsEmpty() bool { return d&0x04 != 0 }

// LinePrefixOptions controls disassembly line-prefix rendering.
type LinePrefixOptions uint8

func newLinePrefixOptions(value uint8) (LinePrefixOptions, error) {
	if value >= 0x10 {
		return 0, wrapInvariant(fmt.Sprintf("invalid LinePrefixOptions value: %X", value))
	}
	return LinePrefixOptions(value), nil
}

func (l LinePrefixOptions) IsSegadr() bool  { return l&0x01 != 0 }
func (l LinePrefixOptions) IsFncoff() bool  { return l&0x02 != 0 }
func (l LinePrefixOptions) IsStack() bool   { return l&0x04 != 0 }
func (l LinePrefixOptions) IsPfxtrunc() bool { return l&0x08 != 0 }

// StrLiteralFlags controls string-literal auto-naming behaviour.
type StrLiteralFlags uint8

func newStrLiteralFlags(value uint8) (StrLiteralFlags, error) {
	if value >= 0x40 {
		return 0, wrapInvariant(fmt.Sprintf("invalid StrLiteralFlags value: %X", value))
	}
	return StrLiteralFlags(value), nil
}

func (s StrLiteralFlags) IsGen() bool      { return s&0x01 != 0 }
func (s StrLiteralFlags) IsAuto() bool     { return s&0x02 != 0 }
func (s StrLiteralFlags) IsSerial() bool   { return s&0x04 != 0 }
func (s StrLiteralFlags) IsUnicode() bool  { return s&0x08 != 0 }
func (s StrLiteralFlags) IsComment() bool  { return s&0x10 != 0 }
func (s StrLiteralFlags) IsSavecase() bool { return s&0x20 != 0 }

// AbiOptions records the target ABI's calling-convention details.
type AbiOptions uint16

func newAbiOptions(value uint32) (AbiOptions, error) {
	if value >= 0x400 {
		return 0, wrapInvariant(fmt.Sprintf("invalid AbiOptions value: %X", value))
	}
	return AbiOptions(value), nil
}

func (a AbiOptions) Is8Align4() bool       { return a&0x001 != 0 }
func (a AbiOptions) IsPackStkargs() bool   { return a&0x002 != 0 }
func (a AbiOptions) IsBigargAlign() bool   { return a&0x004 != 0 }
func (a AbiOptions) IsStackLdbl() bool     { return a&0x008 != 0 }
func (a AbiOptions) IsStackVarargs() bool  { return a&0x010 != 0 }
func (a AbiOptions) IsHardFloat() bool     { return a&0x020 != 0 }
func (a AbiOptions) IsSetByUser() bool     { return a&0x040 != 0 }
func (a AbiOptions) IsGccLayout() bool     { return a&0x080 != 0 }
func (a AbiOptions) IsMapStkargs() bool    { return a&0x100 != 0 }
func (a AbiOptions) IsHugeargAlign() bool  { return a&0x200 != 0 }

// FileType is the loader that produced this database.
type FileType uint16

const (
	FileRaw FileType = iota + 2
	FileMsdosDriver
	FileNe
	FileIntelHex
	FileMex
	FileLx
	FileLe
	FileNlm
	FileCoff
	FilePe
	FileOmf
	FileRRecords
	FileZip
	FileOmflib
	FileAr
	FileLoaderSpecific
	FileElf
	FileW32run
	FileAout
	FilePalmpilot
	FileMsdosExe
	FileMsdosCom
	FileAixar
	FileMacho
	FilePsxobj
)

func fileTypeFromValue(value uint16) (FileType, error) {
	if value < uint16(FileRaw) || value > uint16(FilePsxobj) {
		return 0, wrapInvariant(fmt.Sprintf("invalid FileType value: %X", value))
	}
	return FileType(value), nil
}

// Compiler is the C++ ABI/name-mangling compiler family a database was
// analysed under.
type Compiler uint8

const (
	CompilerUnknown      Compiler = 0
	CompilerVisualStudio Compiler = 1
	CompilerBorland      Compiler = 2
	CompilerWatcom       Compiler = 3
	CompilerGnu          Compiler = 6
	CompilerVisualAge    Compiler = 7
	CompilerDelphi       Compiler = 8
	CompilerOther        Compiler = 9
)

func compilerFromValue(value uint8) Compiler {
	switch value {
	case 0, 1, 2, 3, 6, 7, 8:
		return Compiler(value)
	default:
		return CompilerOther
	}
}

package records

import (
	"encoding/binary"

	"github.com/goidb/idb/internal/arch"
	"github.com/goidb/idb/internal/keyschema"
)

// rootInfoRaw is the unified general-parameters layout every on-disk
// idainfo version is migrated into before its flag fields are
// reconstructed: a handful of historical byte positions only carry
// meaning once remapped by migrateGenflags/migrateLflags/migrateAf1/
// migrateOutflag below, so the unlabeled ones keep their fieldNN names.
type rootInfoRaw[K arch.Kind] struct {
	cpuName                         [16]byte
	genflags                        uint8
	demanglerName                   uint8
	inputFileFormat                 uint16
	inputOperatingSystem            uint16
	inputApplicationType            uint16
	addressesInitialSP              K
	af1                             uint16
	addressesInitialIP              K
	addressesInitialEA              K
	addressesMinEA                  K
	addressesMaxEA                  K
	addressesOriginalMinEA          K
	addressesOriginalMaxEA          K
	suspiciousnessLimitsLow         K
	suspiciousnessLimitsHigh        K
	xrefsMaxDepth                   K
	strlitBreak                     uint8
	field80                         uint8
	indent                          uint8
	cmtIdent                        uint8
	xrefsMaxDisplayedXrefs          uint8
	specialSegmentEntrySize         uint8
	field86                         uint8
	xrefsMaxDisplayedTypeXrefs      uint8
	field88                         uint8
	field89                         uint8
	limiter                         uint8
	field8b                         uint8
	field8c                         uint8
	field8d                         uint8
	field8e                         uint8
	targetAssembler                 uint8
	addressesLoadingBase            K
	xrefsXrefflag                   uint8
	binPrefixSize                   uint16
	cmtflg                          uint8
	namesDummyNames                 uint8
	prefflag                        uint8
	lflags                          uint8
	strlitFlags                     uint8
	listnames                       uint8
	strlitNamePrefix                [16]byte
	strlitSerialNumber              K
	strlitLeadingZeroes             uint8
	fieldBb                         uint8
	fieldBc                         uint8
	fieldBd                         uint8
	fieldBe                         uint8
	fieldBf                         uint8
	fieldC0                         uint8
	fieldC1                         uint8
	addressesInitialSS              K
	addressesInitialCS              K
	addressesMainEA                 K
	demanglerShortDemnames          K
	demanglerLongDemnames           K
	dataCarousel                    K
	strtype                         K
	fieldFa                         uint16
	namesMaxAutogeneratedNameLength uint16
	margin                          uint16
	listingXrefMargin               uint16
	ccIDRaw                         uint8
	ccCm                            uint8
	ccSizeI                         uint8
	ccSizeB                         uint8
	ccSizeE                         uint8
	ccDefalign                      uint8
	ccSizeS                         uint8
	ccSizeL                         uint8
	ccSizeLL                        uint8
	databaseChangeCount             uint32
	ccSizeLdbl                      uint8
	appcallOptions                  uint32
	abibits                         uint32
	xrefsMaxDisplayedStrlitXrefs    uint8
	addressesNetdelta               K
	addressesPrivrangeStartEA       K
	addressesPrivrangeEndEA         K
}

// rootInfoV2RawSize returns the fixed byte size of the migrated layout:
// 0x108 (264) for 32-bit databases, 0x168 (360) for 64-bit ones.
func rootInfoV2RawSize[K arch.Kind]() int {
	return 168 + 24*arch.Bytes[K]()
}

// writeDefaultRootInfoV2 fills buf (already zeroed by the caller) with the
// documented default field values, so that on-disk bytes too short to
// cover every field still leave every later field at a sane value. The
// first 5 bytes (magic + version) are left zero; the overlay that follows
// always replaces them.
func writeDefaultRootInfoV2[K arch.Kind](buf []byte) {
	n := arch.Bytes[K]()
	pos := 5
	pos += 16 // cpu_name
	buf[pos] = 1
	pos++ // genflags
	pos++ // demangler_name
	pos += 2 // input_file_format
	pos += n // _19 (unused)
	pos += n // _29 (unused)
	pos += 2 // input_operating_system
	pos += 2 // input_application_type
	arch.PutLE[K](buf[pos:], arch.MaxValue[K]())
	pos += n // addresses_initial_sp
	binary.LittleEndian.PutUint16(buf[pos:], 0xFFFF)
	pos += 2 // af1
	arch.PutLE[K](buf[pos:], arch.MaxValue[K]())
	pos += n // addresses_initial_ip
	arch.PutLE[K](buf[pos:], arch.MaxValue[K]())
	pos += n // addresses_initial_ea
	arch.PutLE[K](buf[pos:], arch.MaxValue[K]())
	pos += n // addresses_min_ea
	pos += n // addresses_max_ea
	pos += n // addresses_original_min_ea
	pos += n // addresses_original_max_ea
	arch.PutLE[K](buf[pos:], arch.MaxValue[K]())
	pos += n // suspiciousness_limits_low
	pos += n // suspiciousness_limits_high
	arch.PutLE[K](buf[pos:], K(16))
	pos += n // xrefs_max_depth
	buf[pos] = 0xA
	pos++ // strlit_break
	pos++ // field_80
	pos++ // indent
	pos++ // cmt_ident
	buf[pos] = 2
	pos++ // xrefs_max_displayed_xrefs
	buf[pos] = 1
	pos++ // _84 (unused)
	pos++ // special_segment_entry_size
	pos++ // field_86
	buf[pos] = 2
	pos++ // xrefs_max_displayed_type_xrefs
	buf[pos] = 1
	pos++ // field_88
	buf[pos] = 1
	pos++ // field_89
	pos++ // limiter
	buf[pos] = 1
	pos++ // field_8b
	buf[pos] = 2
	pos++ // field_8c
	pos++ // field_8d
	buf[pos] = 1
	pos++ // field_8e
	pos++ // target_assembler
	pos += n // addresses_loading_base
	buf[pos] = 0xF
	pos++ // xrefs_xrefflag
	pos += 2 // bin_prefix_size
	buf[pos] = 1
	pos++ // cmtflg
	pos++ // names_dummy_names
	pos++ // _9d (unused)
	buf[pos] = 1
	pos++ // prefflag
	buf[pos] = 1
	pos++ // lflags
	buf[pos] = 0x11
	pos++ // strlit_flags
	buf[pos] = 0xF
	pos++ // listnames
	buf[pos] = 'a'
	pos += 16 // strlit_name_prefix
	pos += n  // strlit_serial_number
	pos++     // strlit_leading_zeroes
	pos++     // field_bb
	pos++     // field_bc
	pos++     // field_bd
	pos++     // field_be
	buf[pos] = 1
	pos++ // field_bf
	buf[pos] = 1
	pos++ // field_c0
	buf[pos] = 1
	pos++ // field_c1
	arch.PutLE[K](buf[pos:], arch.MaxValue[K]())
	pos += n // addresses_initial_ss
	arch.PutLE[K](buf[pos:], arch.MaxValue[K]())
	pos += n // addresses_initial_cs
	arch.PutLE[K](buf[pos:], arch.MaxValue[K]())
	pos += n // addresses_main_ea
	arch.PutLE[K](buf[pos:], K(0xEA3BE67))
	pos += n // demangler_short_demnames
	arch.PutLE[K](buf[pos:], K(0x6400007))
	pos += n // demangler_long_demnames
	arch.PutLE[K](buf[pos:], K(0x17))
	pos += n // data_carousel
	pos += n // strtype
	binary.LittleEndian.PutUint16(buf[pos:], 0x93FD)
	pos += 2 // field_fa
	binary.LittleEndian.PutUint16(buf[pos:], 0x1FF)
	pos += 2 // names_max_autogenerated_name_length
	pos += 2 // margin
	binary.LittleEndian.PutUint16(buf[pos:], 0x50)
	pos += 2    // listing_xref_margin
	pos += 0x11 // _102 (unused)
	pos++       // cc_id_raw
	buf[pos] = 13
	pos++ // cc_cm
	buf[pos] = 4
	pos++ // cc_size_i
	buf[pos] = 4
	pos++ // cc_size_b
	buf[pos] = 4
	pos++ // cc_size_e
	pos++ // cc_defalign
	buf[pos] = 2
	pos++ // cc_size_s
	buf[pos] = 4
	pos++ // cc_size_l
	buf[pos] = 8
	pos++    // cc_size_ll
	pos += 4 // database_change_count
	pos++    // cc_size_ldbl
	pos += 4 // appcall_options
	pos += 0x10
	pos += 4 // abibits
	buf[pos] = 1
	pos++    // xrefs_max_displayed_strlit_xrefs
	pos += 6 // _13a (unused)
	pos += n // addresses_netdelta
	shift := uint((n - 1) * 8)
	privStart := K(0xFF) << shift
	arch.PutLE[K](buf[pos:], privStart)
	pos += n
	arch.PutLE[K](buf[pos:], privStart|K(0x100000))
	pos += n
	pos += 16 // field_158 (unused)
	_ = pos
}

// decodeRootInfoV2Raw reads buf (already overlaid with on-disk bytes and
// shifted into the unified 16-byte cpu-name shape) into a rootInfoRaw.
func decodeRootInfoV2Raw[K arch.Kind](buf []byte) rootInfoRaw[K] {
	var d rootInfoRaw[K]
	n := arch.Bytes[K]()
	pos := 5
	copy(d.cpuName[:], buf[pos:pos+16])
	pos += 16
	d.genflags = buf[pos]
	pos++
	d.demanglerName = buf[pos]
	pos++
	d.inputFileFormat = binary.LittleEndian.Uint16(buf[pos:])
	pos += 2
	pos += n // _19
	pos += n // _29
	d.inputOperatingSystem = binary.LittleEndian.Uint16(buf[pos:])
	pos += 2
	d.inputApplicationType = binary.LittleEndian.Uint16(buf[pos:])
	pos += 2
	d.addressesInitialSP = arch.ReadLE[K](buf[pos:])
	pos += n
	d.af1 = binary.LittleEndian.Uint16(buf[pos:])
	pos += 2
	d.addressesInitialIP = arch.ReadLE[K](buf[pos:])
	pos += n
	d.addressesInitialEA = arch.ReadLE[K](buf[pos:])
	pos += n
	d.addressesMinEA = arch.ReadLE[K](buf[pos:])
	pos += n
	d.addressesMaxEA = arch.ReadLE[K](buf[pos:])
	pos += n
	d.addressesOriginalMinEA = arch.ReadLE[K](buf[pos:])
	pos += n
	d.addressesOriginalMaxEA = arch.ReadLE[K](buf[pos:])
	pos += n
	d.suspiciousnessLimitsLow = arch.ReadLE[K](buf[pos:])
	pos += n
	d.suspiciousnessLimitsHigh = arch.ReadLE[K](buf[pos:])
	pos += n
	d.xrefsMaxDepth = arch.ReadLE[K](buf[pos:])
	pos += n
	d.strlitBreak = buf[pos]
	pos++
	d.field80 = buf[pos]
	pos++
	d.indent = buf[pos]
	pos++
	d.cmtIdent = buf[pos]
	pos++
	d.xrefsMaxDisplayedXrefs = buf[pos]
	pos++
	pos++ // _84
	d.specialSegmentEntrySize = buf[pos]
	pos++
	d.field86 = buf[pos]
	pos++
	d.xrefsMaxDisplayedTypeXrefs = buf[pos]
	pos++
	d.field88 = buf[pos]
	pos++
	d.field89 = buf[pos]
	pos++
	d.limiter = buf[pos]
	pos++
	d.field8b = buf[pos]
	pos++
	d.field8c = buf[pos]
	pos++
	d.field8d = buf[pos]
	pos++
	d.field8e = buf[pos]
	pos++
	d.targetAssembler = buf[pos]
	pos++
	d.addressesLoadingBase = arch.ReadLE[K](buf[pos:])
	pos += n
	d.xrefsXrefflag = buf[pos]
	pos++
	d.binPrefixSize = binary.LittleEndian.Uint16(buf[pos:])
	pos += 2
	d.cmtflg = buf[pos]
	pos++
	d.namesDummyNames = buf[pos]
	pos++
	pos++ // _9d
	d.prefflag = buf[pos]
	pos++
	d.lflags = buf[pos]
	pos++
	d.strlitFlags = buf[pos]
	pos++
	d.listnames = buf[pos]
	pos++
	copy(d.strlitNamePrefix[:], buf[pos:pos+16])
	pos += 16
	d.strlitSerialNumber = arch.ReadLE[K](buf[pos:])
	pos += n
	d.strlitLeadingZeroes = buf[pos]
	pos++
	d.fieldBb = buf[pos]
	pos++
	d.fieldBc = buf[pos]
	pos++
	d.fieldBd = buf[pos]
	pos++
	d.fieldBe = buf[pos]
	pos++
	d.fieldBf = buf[pos]
	pos++
	d.fieldC0 = buf[pos]
	pos++
	d.fieldC1 = buf[pos]
	pos++
	d.addressesInitialSS = arch.ReadLE[K](buf[pos:])
	pos += n
	d.addressesInitialCS = arch.ReadLE[K](buf[pos:])
	pos += n
	d.addressesMainEA = arch.ReadLE[K](buf[pos:])
	pos += n
	d.demanglerShortDemnames = arch.ReadLE[K](buf[pos:])
	pos += n
	d.demanglerLongDemnames = arch.ReadLE[K](buf[pos:])
	pos += n
	d.dataCarousel = arch.ReadLE[K](buf[pos:])
	pos += n
	d.strtype = arch.ReadLE[K](buf[pos:])
	pos += n
	d.fieldFa = binary.LittleEndian.Uint16(buf[pos:])
	pos += 2
	d.namesMaxAutogeneratedNameLength = binary.LittleEndian.Uint16(buf[pos:])
	pos += 2
	d.margin = binary.LittleEndian.Uint16(buf[pos:])
	pos += 2
	d.listingXrefMargin = binary.LittleEndian.Uint16(buf[pos:])
	pos += 2
	pos += 0x11 // _102
	d.ccIDRaw = buf[pos]
	pos++
	d.ccCm = buf[pos]
	pos++
	d.ccSizeI = buf[pos]
	pos++
	d.ccSizeB = buf[pos]
	pos++
	d.ccSizeE = buf[pos]
	pos++
	d.ccDefalign = buf[pos]
	pos++
	d.ccSizeS = buf[pos]
	pos++
	d.ccSizeL = buf[pos]
	pos++
	d.ccSizeLL = buf[pos]
	pos++
	d.databaseChangeCount = binary.LittleEndian.Uint32(buf[pos:])
	pos += 4
	d.ccSizeLdbl = buf[pos]
	pos++
	d.appcallOptions = binary.LittleEndian.Uint32(buf[pos:])
	pos += 4
	pos += 0x10 // field_125
	d.abibits = binary.LittleEndian.Uint32(buf[pos:])
	pos += 4
	d.xrefsMaxDisplayedStrlitXrefs = buf[pos]
	pos++
	pos += 6 // _13a
	d.addressesNetdelta = arch.ReadLE[K](buf[pos:])
	pos += n
	d.addressesPrivrangeStartEA = arch.ReadLE[K](buf[pos:])
	pos += n
	d.addressesPrivrangeEndEA = arch.ReadLE[K](buf[pos:])
	pos += n
	pos += 16 // field_158
	_ = pos
	return d
}

// migrateVersionCascade applies every version-keyed patch at or above the
// on-disk version, in ascending order, so an old database runs the full
// chain up to the newest patch and a recent one runs none of it.
func migrateVersionCascade[K arch.Kind](d *rootInfoRaw[K], version uint16) {
	if version <= 16 {
		d.targetAssembler = 0
	}
	if version <= 17 {
		d.cmtflg = 1
		d.xrefsXrefflag = d.prefflag
		d.binPrefixSize = 8
	}
	if version <= 18 {
		if d.demanglerName == 0 {
			d.namesDummyNames = 6
		} else {
			d.namesDummyNames = 0
		}
	}
	if version <= 19 {
		d.lflags = 1
	}
	if version <= 20 {
		d.strlitFlags = 1
		d.listnames = 0
		d.strlitNamePrefix = [16]byte{'a'}
		d.fieldBb = 0xff
	}
	if version <= 21 {
		d.fieldBc = 0x84
		d.fieldBd = 0x84
		d.fieldBe = 0
		d.fieldBf = 1
		d.fieldC0 = 1
		d.fieldC1 = 0
	}
	if version <= 24 {
		d.addressesLoadingBase = K(d.inputOperatingSystem)
		appType := d.inputApplicationType
		d.inputOperatingSystem = 0
		d.inputApplicationType = 0
		d.addressesInitialSS = K(appType)
		d.addressesInitialCS = K(d.af1)
	}
	if version <= 25 {
		d.demanglerName = 0
		d.demanglerShortDemnames = K(0xea3be67)
		d.demanglerLongDemnames = K(0x6400007)
	}
	if version <= 27 {
		d.dataCarousel = K(7)
	}
	if version <= 29 {
		d.specialSegmentEntrySize = 0
		if d.listnames == 0 {
			d.listnames = 0xf
			d.af1 = 0xffff
		} else {
			d.strlitFlags |= 4
		}
		if d.field8c != 0 {
			d.strtype = K(0)
		} else {
			d.strtype = K(4)
		}
		d.fieldFa = 1
	}
	if version <= 30 {
		d.namesMaxAutogeneratedNameLength = uint16(d.fieldBb)
	}
	if version <= 32 {
		d.margin = uint16(d.fieldBd)
		fieldBc := d.fieldBc
		d.fieldBb = 0
		d.fieldBc = 0
		d.listingXrefMargin = uint16(fieldBc)
	}
	if version <= 33 {
		switch d.inputFileFormat {
		case 0:
			d.inputFileFormat = 0x16
		case 1:
			d.inputFileFormat = 0x17
		}
	}
	if version <= 36 {
		d.ccIDRaw = d.fieldBb
	}
	if version <= 38 {
		d.limiter |= 2
	}
	if version <= 41 {
		d.field8c = 0
	}
	if version <= 42 {
		if d.xrefsMaxDisplayedTypeXrefs != 0 {
			d.xrefsMaxDisplayedTypeXrefs = d.xrefsMaxDisplayedXrefs
		}
	}
	if version <= 502 {
		d.appcallOptions = 0
	}
}

func migrateGenflags[K arch.Kind](d *rootInfoRaw[K]) uint16 {
	v := uint16(d.genflags)
	if d.field89 != 0 {
		v |= 1
	}
	if d.fieldBb != 0 {
		v |= 0x80
	}
	v |= uint16(d.field8c & 0x1E)
	if d.fieldC1&1 != 0 {
		v |= 0x20
	}
	if d.fieldC1&2 != 0 {
		v |= 0x40
	}
	return v
}

func migrateLflags[K arch.Kind](d *rootInfoRaw[K], genflags uint16) uint32 {
	v := uint32(d.lflags)
	if genflags&0x01 != 0 {
		v |= 0x01
	}
	if genflags&0x02 != 0 {
		v |= 0x02
	}
	if genflags&0x03 != 0 {
		v |= 0x03
	}
	if genflags&0x20 != 0 {
		v |= 0x08
	}
	if genflags&0x80 != 0 {
		v |= 0x10
	}
	if genflags&0x08 != 0 {
		v |= 0x80
	}
	if genflags&0x10 != 0 {
		v |= 0x01
	}
	if d.fieldBe != 0 {
		v |= 0x20
	}
	if d.field80 != 0 {
		v |= 0x40
	}
	return v
}

func migrateAf1[K arch.Kind](d *rootInfoRaw[K]) uint32 {
	af1, fa := d.af1, d.fieldFa
	var v uint32
	bits := []struct {
		mask uint16
		set  uint32
	}{
		{1, 0x80000}, {2, 0x2}, {4, 0x20}, {8, 0x1}, {0x10, 0x80}, {0x20, 0x10},
		{0x40, 0x800000}, {0x80, 0x40}, {0x100, 0x8000000}, {0x200, 0x10000000},
		{0x400, 0x2}, {0x800, 0x10}, {0x1000, 0x20000}, {0x2000, 0x200000},
		{0x4000, 0x100000}, {0x8000, 0x80000000},
	}
	for _, b := range bits {
		if af1&b.mask != 0 {
			v |= b.set
		}
	}
	faBits := []struct {
		mask uint16
		set  uint32
	}{
		{1, 0x4}, {2, 0x20000000}, {4, 0x4000000}, {8, 0x400}, {0x10, 0x800},
		{0x20, 0x40000}, {0x40, 0x1000000}, {0x80, 0x2000000}, {0x100, 0x100},
		{0x200, 0x400000}, {0x400, 0x4000}, {0x800, 0x2000}, {0x1000, 0x40000000},
		{0x2000, 0x10000}, {0x4000, 0x8}, {0x8000, 0x8000},
	}
	for _, b := range faBits {
		if fa&b.mask != 0 {
			v |= b.set
		}
	}
	return v
}

func migrateOutflag[K arch.Kind](d *rootInfoRaw[K]) uint32 {
	var v uint32
	if d.field8c&1 != 0 {
		v |= 0x80
	}
	if d.fieldBf != 0 {
		v |= 0x100
	}
	if d.fieldC0 != 0 {
		v |= 0x200
	}
	return v
}

// migrateRootInfo decodes rest (the bytes immediately after the magic and
// version that readIDBParam already consumed) into the unified,
// flag-reconstructed general-parameters view: it fills a default-valued
// staging buffer, overlays rest on top, reconciles the old 8-byte and new
// 16-byte cpu-name layouts, runs the version-keyed patch cascade, and
// rebuilds genflags/lflags/af/outflag from the auxiliary byte fields that
// only carry meaning once remapped.
func migrateRootInfo[K arch.Kind](rest []byte, version uint16) (*IDBParam2, error) {
	totalSize := rootInfoV2RawSize[K]()
	readData := make([]byte, 0, 5+len(rest))
	readData = append(readData, 'I', 'D', 'A', byte(version), byte(version>>8))
	readData = append(readData, rest...)
	if len(readData) > totalSize {
		return nil, wrapInvariant("invalid size of migrated root info")
	}

	buf := make([]byte, totalSize)
	writeDefaultRootInfoV2[K](buf)
	copy(buf, readData)

	if len(readData) <= totalSize-8 {
		length := totalSize - 29
		if length > 0 {
			copy(buf[0x15:0x15+length], buf[13:13+length])
		}
		for i := 13; i < 21; i++ {
			buf[i] = 0
		}
	} else if len(buf) > 20 {
		buf[20] = 0
	}

	raw := decodeRootInfoV2Raw[K](buf)
	migrateVersionCascade(&raw, version)

	genflags := migrateGenflags(&raw)
	lflags := migrateLflags(&raw, genflags)
	af1 := migrateAf1(&raw)
	outflag := migrateOutflag(&raw)

	p := &IDBParam2{Version: version}

	cpuStr, ok := keyschema.ParseMaybeCString(raw.cpuName[:])
	if !ok {
		return nil, wrapInvariant("invalid migrated root info cpu name")
	}
	p.CPU = append([]byte{}, cpuStr...)

	var err error
	if p.Genflags, err = newInffl(genflags); err != nil {
		return nil, err
	}
	if p.Lflags, err = newLflg(lflags); err != nil {
		return nil, err
	}
	p.DatabaseChangeCount = raw.databaseChangeCount
	if p.Filetype, err = fileTypeFromValue(raw.inputFileFormat); err != nil {
		return nil, err
	}
	p.Ostype = raw.inputOperatingSystem
	p.Apptype = raw.inputApplicationType
	p.Asmtype = raw.targetAssembler
	p.Specsegs = raw.specialSegmentEntrySize
	if p.Af, err = newAf(af1, 3); err != nil {
		return nil, err
	}
	p.Baseaddr = uint64(raw.addressesLoadingBase)
	p.StartSS = uint64(raw.addressesInitialSS)
	p.StartCS = uint64(raw.addressesInitialCS)
	p.StartIP = uint64(raw.addressesInitialIP)
	p.StartEA = uint64(raw.addressesInitialEA)
	p.StartSP = uint64(raw.addressesInitialSP)
	p.Main = uint64(raw.addressesMainEA)
	p.MinEA = uint64(raw.addressesMinEA)
	p.MaxEA = uint64(raw.addressesMaxEA)
	p.OminEA = uint64(raw.addressesOriginalMinEA)
	p.OmaxEA = uint64(raw.addressesOriginalMaxEA)
	p.Lowoff = uint64(raw.suspiciousnessLimitsLow)
	p.Highoff = uint64(raw.suspiciousnessLimitsHigh)
	p.Maxref = uint64(raw.xrefsMaxDepth)
	p.PrivrangeStartEA = uint64(raw.addressesPrivrangeStartEA)
	p.PrivrangeEndEA = uint64(raw.addressesPrivrangeEndEA)
	p.Netdelta = uint64(raw.addressesNetdelta)
	p.Xrefnum = raw.xrefsMaxDisplayedXrefs
	p.TypeXrefnum = raw.xrefsMaxDisplayedTypeXrefs
	p.Refcmtnum = raw.xrefsMaxDisplayedStrlitXrefs
	if p.Xrefflag, err = newXRef(raw.xrefsXrefflag); err != nil {
		return nil, err
	}
	p.MaxAutonameLen = raw.namesMaxAutogeneratedNameLength
	if p.Nametype, err = nameTypeFromValue(raw.namesDummyNames); err != nil {
		return nil, err
	}
	p.ShortDemnames = uint32(raw.demanglerShortDemnames)
	p.LongDemnames = uint32(raw.demanglerLongDemnames)
	if p.Demnames, err = newDemName(raw.demanglerName); err != nil {
		return nil, err
	}
	if p.Listnames, err = newListName(raw.listnames); err != nil {
		return nil, err
	}
	p.Indent = raw.indent
	p.CmtIdent = raw.cmtIdent
	p.Margin = raw.margin
	p.Lenxref = raw.listingXrefMargin
	if p.Outflags, err = newOutputFlags(outflag); err != nil {
		return nil, err
	}
	p.Cmtflg = CommentOptions(raw.cmtflg)
	if p.Limiter, err = newDelimiterOptions(raw.limiter); err != nil {
		return nil, err
	}
	p.BinPrefixSize = raw.binPrefixSize
	if p.Prefflag, err = newLinePrefixOptions(raw.prefflag); err != nil {
		return nil, err
	}
	if p.StrlitFlags, err = newStrLiteralFlags(raw.strlitFlags); err != nil {
		return nil, err
	}
	p.StrlitBreak = raw.strlitBreak
	p.StrlitZeroes = raw.strlitLeadingZeroes
	p.Strtype = uint32(raw.strtype)
	namePrefix, ok := keyschema.ParseMaybeCString(raw.strlitNamePrefix[:])
	if !ok {
		return nil, wrapInvariant("invalid migrated root info strlit name prefix")
	}
	p.StrlitPref = string(namePrefix)
	p.StrlitSernum = uint64(raw.strlitSerialNumber)
	p.DataCarousel = uint64(raw.dataCarousel)
	p.CcGuessed = raw.ccIDRaw&0x80 != 0
	p.CcID = compilerFromValue(raw.ccIDRaw & 0x7F)
	p.CcCm = raw.ccCm
	p.CcSizeI = raw.ccSizeI
	p.CcSizeB = raw.ccSizeB
	p.CcSizeE = raw.ccSizeE
	p.CcDefalign = raw.ccDefalign
	p.CcSizeS = raw.ccSizeS
	p.CcSizeL = raw.ccSizeL
	p.CcSizeLL = raw.ccSizeLL
	p.CcSizeLdbl = raw.ccSizeLdbl
	if p.Abibits, err = newAbiOptions(raw.abibits); err != nil {
		return nil, err
	}
	p.AppcallOptions = raw.appcallOptions

	return p, nil
}

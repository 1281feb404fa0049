package object

// Attribute is a 16-bit bitset describing read/write permissions, PDO
// mappability and backup/settings tags of a single subindex. The zero
// value means "empty subindex" (§3: "Attribute 0 means empty subindex").
type Attribute uint16

const (
	AttrReadConst  Attribute = 1 << iota // readable, value fixed for object lifetime
	AttrRead                             // readable
	AttrWrite                            // writable
	AttrReadPreOp                        // EtherCAT: readable in PRE-OP
	AttrReadSafeOp                       // EtherCAT: readable in SAFE-OP
	AttrReadOp                           // EtherCAT: readable in OP
	AttrWritePreOp                       // EtherCAT: writable in PRE-OP
	AttrWriteSafeOp                      // EtherCAT: writable in SAFE-OP
	AttrWriteOp                         // EtherCAT: writable in OP
	AttrRPDO                            // mappable into an RxPDO (written by PDO)
	AttrTPDO                            // mappable into a TxPDO (read by PDO)
	AttrBackup                          // included in backup set
	AttrSettings                        // included in settings set
)

// ReadMask is the union of every bit that grants some form of read
// access.
const ReadMask = AttrReadConst | AttrRead | AttrReadPreOp | AttrReadSafeOp | AttrReadOp

// WriteMask is the union of every bit that grants some form of write
// access.
const WriteMask = AttrWrite | AttrWritePreOp | AttrWriteSafeOp | AttrWriteOp

// AllPermissions grants every access bit; convenient for local/trusted
// callers (e.g. tests, the CLI) that bypass the remote access policy
// hook entirely.
const AllPermissions Attribute = ReadMask | WriteMask | AttrRPDO | AttrTPDO | AttrBackup | AttrSettings

// CanRead reports whether perms and attr share at least one read bit.
func CanRead(attr, perms Attribute) bool {
	return attr&ReadMask&perms != 0
}

// CanWrite reports whether perms and attr share at least one write bit.
func CanWrite(attr, perms Attribute) bool {
	return attr&WriteMask&perms != 0
}

// IsReadable reports whether attr grants any read access at all,
// irrespective of the caller's permissions.
func IsReadable(attr Attribute) bool {
	return attr&ReadMask != 0
}

// IsWritable reports whether attr grants any write access at all.
func IsWritable(attr Attribute) bool {
	return attr&WriteMask != 0
}

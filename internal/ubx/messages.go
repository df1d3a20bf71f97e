package ubx

// Sync bytes that begin every UBX frame.
const (
	Sync1 = 0xB5
	Sync2 = 0x62
)

// Message classes.
const (
	ClassNAV = 0x01
	ClassRXM = 0x02
	ClassACK = 0x05
	ClassCFG = 0x06
	ClassMON = 0x0A
	ClassAID = 0x0B
)

// Message IDs required by this driver, grouped by class.
const (
	IDAckNak = 0x00 // ACK-NAK
	IDAckAck = 0x01 // ACK-ACK

	IDCfgPrt  = 0x00 // CFG-PRT
	IDCfgMsg  = 0x01 // CFG-MSG
	IDCfgRst  = 0x04 // CFG-RST
	IDCfgRate = 0x08 // CFG-RATE
	IDCfgCfg  = 0x09 // CFG-CFG
	IDCfgRxm  = 0x11 // CFG-RXM
	IDCfgAnt  = 0x13 // CFG-ANT
	IDCfgSbas = 0x16 // CFG-SBAS
	IDCfgNav5 = 0x24 // CFG-NAV5
	IDCfgPm2  = 0x3B // CFG-PM2

	IDAidIni    = 0x01 // AID-INI
	IDAidAlpsrv = 0x32 // AID-ALPSRV
	IDAidAlp    = 0x50 // AID-ALP

	IDNavPvt = 0x07 // NAV-PVT
)

// Message is a decoded UBX frame: class, id, and payload. The checksum is
// not carried here — it is validated on decode and recomputed on encode.
type Message struct {
	Class   byte
	ID      byte
	Payload []byte
}

// ClassID packs Class and ID into a single comparable key, used by the
// dispatcher's pending-request table.
func (m Message) ClassID() uint16 {
	return uint16(m.Class)<<8 | uint16(m.ID)
}

// ClassID packs a class/id pair the same way Message.ClassID does, for
// callers that only have the raw bytes.
func ClassID(class, id byte) uint16 {
	return uint16(class)<<8 | uint16(id)
}

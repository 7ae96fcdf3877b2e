package topology

// Driver is the capability that mutates kernel topology constructs. All
// calls are synchronous; implementations must not retry internally.
type Driver interface {
	CreateBridge(name string, stp bool) error
	DeleteBridge(name string) error

	// CreateVLAN creates device.tag on top of device.
	CreateVLAN(device string, tag int) error
	DeleteVLAN(device string, tag int) error

	CreateBond(name string, options map[string]string) error
	DeleteBond(name string) error

	// Enslave puts slave under master (bond member or bridge port).
	Enslave(master, slave string) error
	// Release frees slave from its master.
	Release(slave string) error

	SetMTU(device string, mtu int) error

	AddAddress(device, address, netmask string) error
	DelAddress(device, address, netmask string) error

	// Snapshot returns the live kernel view.
	Snapshot() (Snapshot, error)
}

// LinkOps is the subset of link operations the transaction needs. It is
// satisfied by link.System.
type LinkOps interface {
	Up(device string, adminBlocking, operBlocking bool) error
	Down(device string) error
	Exists(device string) bool
}

// SourceRouter is the subset of source-route operations the transaction
// needs. It is satisfied by sourceroute.Manager.
type SourceRouter interface {
	Configure(device, address, netmask, gateway string) error
	Remove(device string) error
}

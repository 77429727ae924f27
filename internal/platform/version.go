package platform

// Windows 10 Creators Update, the first build with the DirectX 12 compute
// features the DXC pipeline needs.
const minDX12Build = 15063

// dx12Version reports whether an OS version is recent enough for
// DirectX 12. A build number of 0 means the build is unknown and passes.
func dx12Version(major, build uint32) bool {
	if major < 10 {
		return false
	}
	return build == 0 || build >= minDX12Build
}

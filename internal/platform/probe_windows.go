//go:build windows

package platform

import "golang.org/x/sys/windows"

// DX12Supported reports whether the running Windows version supports
// DirectX 12 compute.
func DX12Supported() bool {
	v := windows.RtlGetVersion()
	if v == nil {
		return false
	}
	return dx12Version(v.MajorVersion, v.BuildNumber)
}

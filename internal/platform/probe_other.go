//go:build !windows

package platform

// DX12Supported reports whether DirectX 12 compute is available.
// It is never available outside Windows.
func DX12Supported() bool {
	return false
}

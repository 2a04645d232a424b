//go:build mailnet_no_stdtls

package netstream

func StdTLSEnabled() bool { return false }

func newStdConnector(TLSOptions) (Connector, error) {
	return nil, errBackendDisabled(BackendStd)
}

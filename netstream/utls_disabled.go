//go:build mailnet_no_utls

package netstream

func UTLSEnabled() bool { return false }

func newUTLSConnector(TLSOptions) (Connector, error) {
	return nil, errBackendDisabled(BackendUTLS)
}

package services

import (
	"github.com/mbocsi/cyberos/server"
)

// TransportServiceImpl implements TransportService
type TransportServiceImpl struct {
	transport server.Transport
}

// NewTransportService creates a new transport service
func NewTransportService(transport server.Transport) TransportService {
	return &TransportServiceImpl{transport: transport}
}

func (ts *TransportServiceImpl) GetTransport() TransportInfo {
	return convertTransportMeta(ts.transport.Meta())
}

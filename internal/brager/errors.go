package brager

import "errors"

// Domain errors for the BragerConnect cloud client.
var (
	// ErrNotConnected is returned when an operation requires a connection
	// but the client is not connected to the cloud service.
	ErrNotConnected = errors.New("brager: not connected to cloud service")

	// ErrConnectionFailed is returned when the WebSocket connection fails.
	ErrConnectionFailed = errors.New("brager: connection to cloud service failed")

	// ErrHandshakeFailed is returned when the READY_SIGNAL exchange fails.
	ErrHandshakeFailed = errors.New("brager: handshake failed")

	// ErrAuthFailed is returned when login is rejected
	// (wrong username or password).
	ErrAuthFailed = errors.New("brager: authentication failed")

	// ErrCallTimeout is returned when the server does not answer a
	// function call within the call timeout.
	ErrCallTimeout = errors.New("brager: call timed out")

	// ErrRemoteException is returned when the server answers a call
	// with an EXCEPTION frame.
	ErrRemoteException = errors.New("brager: server exception")

	// ErrCallFailed is returned when sending a function call fails.
	ErrCallFailed = errors.New("brager: call failed")

	// ErrInvalidFrame is returned when a received frame is malformed.
	ErrInvalidFrame = errors.New("brager: invalid frame")

	// ErrInvalidFieldRef is returned when a field reference string
	// cannot be parsed.
	ErrInvalidFieldRef = errors.New("brager: invalid field reference")

	// ErrInvalidResponse is returned when a server response does not
	// have the expected shape.
	ErrInvalidResponse = errors.New("brager: invalid response")

	// ErrDeviceNotFound is returned when the cloud account has no
	// device with the requested identifier.
	ErrDeviceNotFound = errors.New("brager: device not found")

	// ErrClosed is returned when an operation is attempted on a
	// closed client.
	ErrClosed = errors.New("brager: client closed")
)

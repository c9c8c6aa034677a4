package ports

// Ingestor receives mail from outside and stores it as email records
type Ingestor interface {
	// Start starts accepting mail; it returns once the listener is up
	Start() error

	// Stop stops accepting mail
	Stop() error
}

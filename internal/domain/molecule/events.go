package molecule

// DomainEvent is implemented by every registry change notification.
type DomainEvent interface {
	EventType() string
	// Key orders events for the same identifier on a partitioned transport.
	Key() string
}

// MoleculeCreatedEvent is raised after a successful add.
type MoleculeCreatedEvent struct {
	Identifier string `json:"identifier"`
	SMILES     string `json:"smiles"`
}

func (e MoleculeCreatedEvent) EventType() string { return "molecule.created" }
func (e MoleculeCreatedEvent) Key() string       { return e.Identifier }

// MoleculeUpdatedEvent is raised after a successful update.
type MoleculeUpdatedEvent struct {
	Identifier string `json:"identifier"`
	SMILES     string `json:"smiles"`
}

func (e MoleculeUpdatedEvent) EventType() string { return "molecule.updated" }
func (e MoleculeUpdatedEvent) Key() string       { return e.Identifier }

// MoleculeDeletedEvent is raised after a successful delete.
type MoleculeDeletedEvent struct {
	Identifier string `json:"identifier"`
	SMILES     string `json:"smiles"`
}

func (e MoleculeDeletedEvent) EventType() string { return "molecule.deleted" }
func (e MoleculeDeletedEvent) Key() string       { return e.Identifier }

// BatchLoadedEvent is raised after a bulk upload that added at least one
// molecule.
type BatchLoadedEvent struct {
	Identifiers []string `json:"identifiers"`
	Skipped     int      `json:"skipped"`
}

func (e BatchLoadedEvent) EventType() string { return "molecule.batch_loaded" }
func (e BatchLoadedEvent) Key() string       { return "batch" }

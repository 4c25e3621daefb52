package types

// Version is the canonical project version.
// The daemon, the tool and the fault record schema share this version
// per the lockstep versioning policy.
const Version = "0.3.0"

// RecordVersion is the fault record schema version stamped on every record.
const RecordVersion = Version

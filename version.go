package correlate

// version is reported in the user agent of outgoing batches and attached to
// every event as meta.correlate_version.
const version = "1.0.0"

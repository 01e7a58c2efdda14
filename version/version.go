package version

// Version of the aj-server binary. Bumped on release.
const Version = "1.0.0"

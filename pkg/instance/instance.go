package instance

import "github.com/angelmondragon/catalog-backend/pkg/env"

// ID names the running process in logs. Explicit configuration wins over the
// platform-provided dyno or host name.
func ID() string {
	return env.First("local", "CATALOG_INSTANCE_ID", "DYNO", "HOSTNAME")
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const sampleConfig = `# gridgate configuration
#
# Every key can be overridden with an environment variable named
# GRIDGATE_<KEY>, dots replaced by underscores.

# Grid endpoint
host = localhost
port = 1247
zone = tempZone
resource = demoResc

# CS_NEG_REFUSE, CS_NEG_REQUIRE or CS_NEG_DONT_CARE
sslPolicy = CS_NEG_DONT_CARE

# STANDARD, GSI, KERBEROS or PAM
authScheme = STANDARD

# Administrative account. Set both or neither.
systemUsername = rods
systemPassword = rods

# Command logs. Leave empty to log through the process logger.
#accessLogPath = /var/log/gridgate/access.log
#performanceLogPath = /var/log/gridgate/performance.log
#errorLogPath = /var/log/gridgate/error.log

# DEBUG, INFO, WARN or ERROR
logLevel = INFO

# Commands per second through the gateway. 0 disables throttling.
#commandRateLimit = 100
#commandBurst = 200

# Embedded grid back ends
# memory or badger
backend.catalog.type = memory
#backend.catalog.path = /var/lib/gridgate/catalog
# memory, fs or s3
backend.content.type = memory
#backend.content.path = /var/lib/gridgate/content
#backend.s3.bucket = gridgate
#backend.s3.region = us-east-1
#backend.s3.endpoint = http://localhost:9000
#backend.s3.accessKeyId =
#backend.s3.secretAccessKey =
#backend.s3.keyPrefix = objects/
`

// WriteSample writes a commented sample configuration to path, creating its
// directory. An existing file is only replaced when force is set.
func WriteSample(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration already exists at %s (use force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create configuration directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	return nil
}

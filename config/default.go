package config

// DefaultValues is the default configuration of the forge node
const DefaultValues = `
[Log]
Level = "info"

[StateDB]
Type = "pebble"
Path = "/var/forge/statedb"
Keep = 128

[HistoryDB]
Driver = "sqlite3"
SQLitePath = "/var/forge/history.db"

[Ledger]
MinimumBalance = 890880

[Clock]
Genesis = 0
SlotDuration = "400ms"

[Engine]
CheckpointInterval = 100

[API]
Address = "0.0.0.0:8086"
ReadTimeout = "30s"
WriteTimeout = "30s"
MaxSQLConnections = 100
SQLConnectionTimeout = "2s"
RequestsPerSecond = 50
Burst = 100
AllowOrigins = ["*"]

[Debug]
APIAddress = "0.0.0.0:12345"
MeddlerLogs = false
GinDebugMode = false
`

package config

type WorkerKeyStruct struct {
	PersistCheatsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistCheatsQueue: "persist_cheats_queue",
}

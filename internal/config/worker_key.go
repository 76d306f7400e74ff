package config

type WorkerKeyStruct struct {
	SuspicionRecalcQueue string
}

var WorkerKey = &WorkerKeyStruct{
	SuspicionRecalcQueue: "suspicion_recalc_queue",
}

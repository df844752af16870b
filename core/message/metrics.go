package message

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	readResultNew         = "new"
	readResultAlreadyRead = "already_read"
)

var messagesRead = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "studylab_messages_read_total",
		Help: "Total number of mark-as-read requests by result",
	},
	[]string{"result"},
)

// Package api defines Kafka protocol requests and responses.
package api

import (
	"fmt"

	"github.com/mkocikowski/simplekafka/wire"
)

// Key identifies a Kafka API (the first field of every request header).
type Key int16

const (
	Produce                 Key = 0
	Fetch                   Key = 1
	ListOffsets             Key = 2
	Metadata                Key = 3
	LeaderAndIsr            Key = 4
	StopReplica             Key = 5
	UpdateMetadata          Key = 6
	ControlledShutdown      Key = 7
	OffsetCommit            Key = 8
	OffsetFetch             Key = 9
	FindCoordinator         Key = 10
	JoinGroup               Key = 11
	Heartbeat               Key = 12
	LeaveGroup              Key = 13
	SyncGroup               Key = 14
	DescribeGroups          Key = 15
	ListGroups              Key = 16
	SaslHandshake           Key = 17
	ApiVersions             Key = 18
	CreateTopics            Key = 19
	DeleteTopics            Key = 20
	DeleteRecords           Key = 21
	InitProducerId          Key = 22
	OffsetForLeaderEpoch    Key = 23
	AddPartitionsToTxn      Key = 24
	AddOffsetsToTxn         Key = 25
	EndTxn                  Key = 26
	WriteTxnMarkers         Key = 27
	TxnOffsetCommit         Key = 28
	DescribeAcls            Key = 29
	CreateAcls              Key = 30
	DeleteAcls              Key = 31
	DescribeConfigs         Key = 32
	AlterConfigs            Key = 33
	AlterReplicaLogDirs     Key = 34
	DescribeLogDirs         Key = 35
	SaslAuthenticate        Key = 36
	CreatePartitions        Key = 37
	CreateDelegationToken   Key = 38
	RenewDelegationToken    Key = 39
	ExpireDelegationToken   Key = 40
	DescribeDelegationToken Key = 41
	DeleteGroups            Key = 42
	ElectPreferredLeaders   Key = 43
)

var Keys = map[Key]string{
	0:  "Produce",
	1:  "Fetch",
	2:  "ListOffsets",
	3:  "Metadata",
	4:  "LeaderAndIsr",
	5:  "StopReplica",
	6:  "UpdateMetadata",
	7:  "ControlledShutdown",
	8:  "OffsetCommit",
	9:  "OffsetFetch",
	10: "FindCoordinator",
	11: "JoinGroup",
	12: "Heartbeat",
	13: "LeaveGroup",
	14: "SyncGroup",
	15: "DescribeGroups",
	16: "ListGroups",
	17: "SaslHandshake",
	18: "ApiVersions",
	19: "CreateTopics",
	20: "DeleteTopics",
	21: "DeleteRecords",
	22: "InitProducerId",
	23: "OffsetForLeaderEpoch",
	24: "AddPartitionsToTxn",
	25: "AddOffsetsToTxn",
	26: "EndTxn",
	27: "WriteTxnMarkers",
	28: "TxnOffsetCommit",
	29: "DescribeAcls",
	30: "CreateAcls",
	31: "DeleteAcls",
	32: "DescribeConfigs",
	33: "AlterConfigs",
	34: "AlterReplicaLogDirs",
	35: "DescribeLogDirs",
	36: "SaslAuthenticate",
	37: "CreatePartitions",
	38: "CreateDelegationToken",
	39: "RenewDelegationToken",
	40: "ExpireDelegationToken",
	41: "DescribeDelegationToken",
	42: "DeleteGroups",
	43: "ElectPreferredLeaders",
}

func (k Key) String() string {
	if s, ok := Keys[k]; ok {
		return s
	}
	return fmt.Sprintf("Key(%d)", int16(k))
}

// ParseKey returns the Key for k, or an error wrapping
// wire.ErrMalformedResponse if k is not a known api key.
func ParseKey(k int16) (Key, error) {
	if _, ok := Keys[Key(k)]; !ok {
		return 0, fmt.Errorf("unknown api key %d: %w", k, wire.ErrMalformedResponse)
	}
	return Key(k), nil
}

// Supported is the closed set of apis (and their versions) this library
// speaks. Request and response structs in the api sub packages are laid out
// for exactly these versions.
var Supported = map[Key]int16{
	Produce:         7,
	Fetch:           4,
	ListOffsets:     2,
	Metadata:        5,
	OffsetCommit:    2,
	OffsetFetch:     3,
	FindCoordinator: 1,
	ApiVersions:     0,
}

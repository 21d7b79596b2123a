package eventbus

import "time"

type PipelineEventType string

const (
	PipelineEventRunStarted        PipelineEventType = "RunStarted"
	PipelineEventRunFinished       PipelineEventType = "RunFinished"
	PipelineEventDocumentConverted PipelineEventType = "DocumentConverted"
	PipelineEventConversionFailed  PipelineEventType = "ConversionFailed"
	PipelineEventDocumentPersisted PipelineEventType = "DocumentPersisted"
	PipelineEventAssetStored       PipelineEventType = "AssetStored"
	PipelineEventAssetLinked       PipelineEventType = "AssetLinked"
	PipelineEventRecordSkipped     PipelineEventType = "RecordSkipped"
	PipelineEventPageExported      PipelineEventType = "PageExported"
)

// PipelineEvent 迁移与导出过程中的事件，字段按事件类型选择性填写
type PipelineEvent struct {
	Type       PipelineEventType
	RunID      string
	Stage      string // sections, terms, documents, images, export
	DocumentID uint
	Code       string
	SHA256     string
	Written    bool // 资源文件是否为本次新写入
	Reason     string
	Status     string
	Duration   time.Duration
}

type PipelineEventHandler = Handler[PipelineEvent]
type PipelineEventBus = Bus[PipelineEventType, PipelineEvent]

func NewPipelineEventBus() *PipelineEventBus {
	return NewBus(func(e PipelineEvent) PipelineEventType { return e.Type })
}

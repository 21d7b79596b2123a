package model

// 以下为旧版导出库中的只读行，每次迁移读取一次，不做修改。

type LegacySection struct {
	Number int
	Title  *string
	Kind   *string
}

type LegacyTerm struct {
	SectionNumber int
	ItemNumber    *string
	Term          *string
	Description   *string
	Abbreviation  *string
}

type LegacyDocument struct {
	ID            int64
	SectionNumber *int
	SourcePath    string
	Title         *string
	FormatHint    string
	ExtractedText *string
}

type LegacyImage struct {
	DocumentID int64
	ImagePath  string
	Width      *int
	Height     *int
	PageIndex  *int
}

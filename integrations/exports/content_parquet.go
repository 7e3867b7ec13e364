package exports

import (
	"fmt"
	"io"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"patreonix/native/creator"
)

type parquetContentRow struct {
	Address      string `parquet:"name=address, type=BYTE_ARRAY, convertedtype=UTF8"`
	Creator      string `parquet:"name=creator, type=BYTE_ARRAY, convertedtype=UTF8"`
	ContentIndex int64  `parquet:"name=content_index, type=INT64"`
	Title        string `parquet:"name=title, type=BYTE_ARRAY, convertedtype=UTF8"`
	ContentType  string `parquet:"name=content_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatedAt    int64  `parquet:"name=created_at, type=INT64"`
	Comments     int32  `parquet:"name=comments, type=INT32"`
	IsActive     bool   `parquet:"name=is_active, type=BOOLEAN"`
}

// ContentParquet writes content headers to w as a snappy compressed Parquet
// file.
func ContentParquet(w io.Writer, entries []*creator.ContentDetails) error {
	fw := writerfile.NewWriterFile(w)
	pw, err := writer.NewParquetWriter(fw, new(parquetContentRow), 1)
	if err != nil {
		return fmt.Errorf("exports: parquet schema: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, entry := range entries {
		if entry == nil {
			continue
		}
		row := &parquetContentRow{
			Address:      entry.Address.String(),
			Creator:      entry.Creator.String(),
			ContentIndex: int64(entry.ContentIndex),
			Title:        entry.Title,
			ContentType:  entry.ContentType.String(),
			CreatedAt:    entry.CreatedAt,
			Comments:     int32(len(entry.Comments)),
			IsActive:     entry.IsActive,
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return fmt.Errorf("exports: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("exports: parquet finalise: %w", err)
	}
	return nil
}

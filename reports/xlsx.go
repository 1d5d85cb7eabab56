// Package reports renders catalog and ledger data as spreadsheets.
package reports

import (
	"strconv"
	"strings"
	"time"

	"shopapi/models"

	"github.com/tealeg/xlsx"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	timeLayout  = "2006-01-02 15:04:05"
)

func ProductsWorkbook(products []models.Product) (*xlsx.File, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Products")
	if err != nil {
		return nil, err
	}
	header(sheet, "ID", "Title", "Category", "Price", "IsDiscount", "NewPrice", "IsFinished", "Image", "CreatedAt")

	for _, p := range products {
		row := sheet.AddRow()
		row.AddCell().SetValue(p.ID.Hex())
		row.AddCell().SetValue(p.Title)
		row.AddCell().SetValue(p.Category)
		row.AddCell().SetValue(p.Price)
		row.AddCell().SetBool(p.IsDiscount)
		row.AddCell().SetValue(p.NewPrice)
		row.AddCell().SetBool(p.IsFinished)
		row.AddCell().SetValue(p.Image)
		row.AddCell().SetValue(p.CreatedAt.Format(timeLayout))
	}
	return file, nil
}

// OrdersWorkbook writes one row per ledger entry, with the ordered products
// flattened into a single "title x qty" column.
func OrdersWorkbook(orders []models.Order) (*xlsx.File, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		return nil, err
	}
	header(sheet, "ID", "OrderID", "Customer", "Email", "Phone", "Address", "Products", "Total", "Delivered", "CreatedAt", "DeliveredAt")

	for _, o := range orders {
		items := make([]string, 0, len(o.ProductsOrdered))
		for _, li := range o.ProductsOrdered {
			items = append(items, li.Title+" x"+strconv.Itoa(li.Quantity))
		}

		row := sheet.AddRow()
		row.AddCell().SetValue(o.ID.Hex())
		row.AddCell().SetValue(o.OrderID)
		row.AddCell().SetValue(o.CustomerName)
		row.AddCell().SetValue(o.CustomerEmail)
		row.AddCell().SetValue(o.CustomerPhoneNumber)
		row.AddCell().SetValue(o.CustomerAddress)
		row.AddCell().SetValue(strings.Join(items, ", "))
		row.AddCell().SetValue(o.TotalAmount)
		row.AddCell().SetBool(o.Delivered)
		row.AddCell().SetValue(o.CreatedAt.Format(timeLayout))
		row.AddCell().SetValue(formatOptional(o.DeliveredAt))
	}
	return file, nil
}

func header(sheet *xlsx.Sheet, titles ...string) {
	row := sheet.AddRow()
	for _, t := range titles {
		row.AddCell().SetValue(t)
	}
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timeLayout)
}

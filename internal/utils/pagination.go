package utils

// TotalPages 返回 ceil(total/size)；size <= 0 时为 0。
func TotalPages(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	s := int64(size)
	return int((total + s - 1) / s)
}

// Offset 把从 1 开始的页码换算成偏移量。
func Offset(page, size int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * size
}

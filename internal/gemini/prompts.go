package gemini

import "fmt"

const adviceSystemInstruction = "شما یک طراح دکوراسیون داخلی حرفه‌ای هستید. به زبان فارسی و با لحنی صمیمی راهنمایی کنید."

func editPrompt(instruction string) string {
	return fmt.Sprintf("این یک تصویر از دکوراسیون داخلی است. لطفا آن را بر اساس این دستور تغییر دهید: %s. خروجی باید تصویر باشد.", instruction)
}

func videoPrompt(instruction string) string {
	return "Animate this room according to: " + instruction
}

func themePrompt(request string) string {
	return fmt.Sprintf(`درخواست کاربر برای تغییر تم برنامه: "%s".
لطفا یک رنگ اصلی (HEX) و حالت تم (light یا dark) پیشنهاد دهید.
پاسخ را فقط به صورت JSON با ساختار {"primaryColor": string, "themeMode": "light" | "dark"} برگردانید.`, request)
}

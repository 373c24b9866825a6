package config

// Example is the scaffold written by `webharvest init`. It documents
// every knob with a working books-catalogue target.
const Example = `# webharvest configuration.
#
# scraper: holds global defaults; every target may override rate_limit,
# max_retries, timeout, and user_agent for itself.
scraper:
  timeout: 30s
  max_retries: 2
  rate_limit: 1s
  concurrency: 10
  # user_agent: "mybot/1.0 (+https://example.com/bot)"

targets:
  books:
    base_url: https://books.toscrape.com/
    selectors:
      # A bare string is shorthand for a CSS selector extracting the
      # trimmed text of the first match.
      title:
        selector: "article.product_pod h3 a"
        attr: title
        repeating: true
      price:
        selector: "article.product_pod .price_color"
        repeating: true
      # kind: xpath switches the expression language.
      # stock:
      #   selector: '//article//p[contains(@class,"availability")]'
      #   kind: xpath
      #   repeating: true
    pagination:
      enabled: true
      next_selector: "li.next a"
      max_pages: 5
`
